// Package history provides persistent storage for training-run metrics.
package history

import (
	"context"
	"errors"
)

// Store errors.
var (
	ErrStoreInitFailed = errors.New("history store initialization failed")
	ErrStoreClosed     = errors.New("history store is closed")
	ErrRunNotFound     = errors.New("run not found")
	ErrQueryFailed     = errors.New("history query failed")
)

// Record is one per-epoch history row of a training run.
type Record struct {
	RunID     string                 `json:"runId"`
	Epoch     int                    `json:"epoch"`
	IterCnt   int                    `json:"iterCnt"`
	Loss      float64                `json:"loss"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Store persists training history.
type Store interface {
	// Append adds a record to a run's history.
	Append(ctx context.Context, record Record) error
	// Records returns a run's history ordered by epoch then iteration.
	Records(ctx context.Context, runID string) ([]Record, error)
	// Runs returns the known run IDs, most recent first.
	Runs(ctx context.Context) ([]string, error)
	// Close releases the store's resources.
	Close() error
}
