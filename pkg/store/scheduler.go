package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner enforces the generation retention policy for one store.
type Pruner struct {
	store  *Store
	keep   int
	logger *slog.Logger
}

// NewPruner creates a pruner that keeps the newest keep generations.
// keep <= 0 keeps everything.
func NewPruner(store *Store, keep int) *Pruner {
	return &Pruner{
		store:  store,
		keep:   keep,
		logger: store.baseLogger.With("component", "store.pruner", "namespace", store.namespace),
	}
}

// Prune runs one pruning pass and returns how many generations it deleted.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.keep <= 0 {
		return 0, nil
	}
	return p.store.Prune(ctx, p.keep)
}

// Scheduler runs a Pruner on a cron schedule.
type Scheduler struct {
	pruner   *Pruner
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for pruner. schedule is a standard
// five-field cron expression.
//
// Common cron expressions:
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 */6 * * *"  - Every 6 hours
//   - "0 3 * * *"    - Daily at 3 AM
func NewScheduler(pruner *Pruner, schedule string) *Scheduler {
	return &Scheduler{
		pruner:   pruner,
		schedule: schedule,
		cron:     cron.New(),
		logger:   pruner.store.baseLogger.With("component", "store.scheduler", "namespace", pruner.store.namespace),
	}
}

// Start begins scheduled pruning. An empty schedule does nothing. The
// scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runPruning(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("prune scheduler started",
		"schedule", s.schedule,
		"keep_generations", s.pruner.keep,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunNow runs one pruning pass outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runPruning(ctx)
}

func (s *Scheduler) runPruning(ctx context.Context) {
	deleted, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled pruning completed, no generations deleted")
	}
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("prune scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled pruning time, or nil when nothing is
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
