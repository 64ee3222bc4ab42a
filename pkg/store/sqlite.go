package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"
)

// Driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshot_generations (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	namespace  TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	entries    INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	data       BLOB    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generations_namespace ON snapshot_generations(namespace, seq);
`

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Driver is "sqlite" (modernc.org/sqlite) or "sqlite3"
	// (github.com/mattn/go-sqlite3).
	// Default: "sqlite"
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 1
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteBackend implements Backend on SQLite through either registered
// driver. Snapshots are stored as opaque blobs.
type SQLiteBackend struct {
	db        *sql.DB
	config    SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once

	saveStmt   *sql.Stmt
	latestStmt *sql.Stmt
	loadStmt   *sql.Stmt
	listStmt   *sql.Stmt
	pruneStmt  *sql.Stmt
}

// NewSQLiteBackend opens (creating if needed) the database at cfg.Path.
func NewSQLiteBackend(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 1
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStorageError("sqlite", "open", err)
			}
		}
	}

	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(0)

	s := &SQLiteBackend{
		db:     db,
		config: cfg,
		logger: logger.With("component", "store.sqlite", "driver", cfg.Driver),
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "create_schema", err)
	}

	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Info("SQLite snapshot store initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// sqliteDSN builds a connection string carrying the busy timeout and
// journal mode, so every pooled connection is configured the same way.
// The two drivers spell these parameters differently.
func sqliteDSN(cfg SQLiteConfig) (string, error) {
	q := url.Values{}
	ms := cfg.BusyTimeout.Milliseconds()

	switch cfg.Driver {
	case DriverModernc:
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		if cfg.WALMode {
			q.Add("_pragma", "journal_mode(WAL)")
		}
	case DriverCgo:
		q.Set("_busy_timeout", fmt.Sprint(ms))
		if cfg.WALMode {
			q.Set("_journal_mode", "WAL")
		}
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", cfg.Driver)
	}

	return "file:" + cfg.Path + "?" + q.Encode(), nil
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	const cols = `seq, id, namespace, created_at, entries, size`

	stmts := []struct {
		dst   **sql.Stmt
		name  string
		query string
	}{
		{&s.saveStmt, "save", `
			INSERT INTO snapshot_generations (id, namespace, created_at, entries, size, data)
			VALUES (?, ?, ?, ?, ?, ?)`},
		{&s.latestStmt, "latest", `
			SELECT ` + cols + `, data FROM snapshot_generations
			WHERE namespace = ? ORDER BY seq DESC LIMIT 1`},
		{&s.loadStmt, "load", `
			SELECT ` + cols + `, data FROM snapshot_generations WHERE id = ?`},
		{&s.listStmt, "list", `
			SELECT ` + cols + ` FROM snapshot_generations
			WHERE namespace = ? ORDER BY seq DESC`},
		{&s.pruneStmt, "prune", `
			DELETE FROM snapshot_generations
			WHERE namespace = ? AND seq NOT IN (
				SELECT seq FROM snapshot_generations
				WHERE namespace = ? ORDER BY seq DESC LIMIT ?
			)`},
	}

	for _, st := range stmts {
		stmt, err := s.db.Prepare(st.query)
		if err != nil {
			return NewStorageError("sqlite", "prepare_"+st.name, err)
		}
		*st.dst = stmt
	}
	return nil
}

// Save inserts a new generation.
func (s *SQLiteBackend) Save(ctx context.Context, gen Generation, data []byte) (Generation, error) {
	res, err := s.saveStmt.ExecContext(ctx,
		gen.ID.String(),
		gen.Namespace,
		gen.CreatedAt.UnixNano(),
		gen.Entries,
		gen.Size,
		data,
	)
	if err != nil {
		return Generation{}, NewStorageError("sqlite", "save", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return Generation{}, NewStorageError("sqlite", "save", err)
	}
	gen.Seq = seq
	return gen, nil
}

// Latest returns the newest generation in namespace.
func (s *SQLiteBackend) Latest(ctx context.Context, namespace string) (Generation, []byte, error) {
	gen, data, err := scanGeneration(s.latestStmt.QueryRowContext(ctx, namespace), true)
	if err != nil {
		return Generation{}, nil, wrapScanErr("latest", err)
	}
	return gen, data, nil
}

// Load returns the generation with the given id.
func (s *SQLiteBackend) Load(ctx context.Context, id uuid.UUID) (Generation, []byte, error) {
	gen, data, err := scanGeneration(s.loadStmt.QueryRowContext(ctx, id.String()), true)
	if err != nil {
		return Generation{}, nil, wrapScanErr("load", err)
	}
	return gen, data, nil
}

// List returns the generations in namespace, newest first.
func (s *SQLiteBackend) List(ctx context.Context, namespace string) ([]Generation, error) {
	rows, err := s.listStmt.QueryContext(ctx, namespace)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		gen, _, err := scanGeneration(rows, false)
		if err != nil {
			return nil, NewStorageError("sqlite", "list", err)
		}
		out = append(out, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	return out, nil
}

// Prune keeps the newest keep generations in namespace.
func (s *SQLiteBackend) Prune(ctx context.Context, namespace string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	res, err := s.pruneStmt.ExecContext(ctx, namespace, namespace, keep)
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return int(n), nil
}

// Close closes prepared statements and the database.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.saveStmt, s.latestStmt, s.loadStmt, s.listStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.config.WALMode {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		}
		closeErr = s.db.Close()
	})

	return closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner, withData bool) (Generation, []byte, error) {
	var (
		gen       Generation
		id        string
		createdAt int64
		data      []byte
	)

	dest := []any{&gen.Seq, &id, &gen.Namespace, &createdAt, &gen.Entries, &gen.Size}
	if withData {
		dest = append(dest, &data)
	}
	if err := row.Scan(dest...); err != nil {
		return Generation{}, nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Generation{}, nil, fmt.Errorf("invalid generation id %q: %w", id, err)
	}
	gen.ID = parsed
	gen.CreatedAt = time.Unix(0, createdAt).UTC()
	return gen, data, nil
}

func wrapScanErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return NewStorageError("sqlite", op, err)
}
