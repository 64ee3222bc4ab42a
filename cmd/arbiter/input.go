package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"nsc-hq/arbiter/pkg/supervisor"
)

// openInput opens path for reading; "-" is standard input.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// readBatches decodes a stream of JSON signals, one object per line, and
// calls fn with batches of at most batchSize signals. It returns the number
// of signals handed to fn.
func readBatches(ctx context.Context, r io.Reader, batchSize int, fn func([]supervisor.Signal) error) (int, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	dec := json.NewDecoder(r)
	batch := make([]supervisor.Signal, 0, batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = make([]supervisor.Signal, 0, batchSize)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var sig supervisor.Signal
		err := dec.Decode(&sig)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("signal %d: %w", total+len(batch)+1, err)
		}
		if sig.IntentID == "" {
			return total, fmt.Errorf("signal %d: missing intent_id", total+len(batch)+1)
		}

		batch = append(batch, sig)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	return total, flush()
}
