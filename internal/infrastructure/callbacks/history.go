package callbacks

import (
	"context"
	"fmt"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
	"github.com/blackms/gradflow/internal/infrastructure/history"
)

// History appends one record per epoch to a history store, keyed by the
// learner's run ID. Store failures abort the run.
type History struct {
	BaseCallback
	store history.Store
}

// NewHistory creates a history callback backed by the given store.
func NewHistory(store history.Store) *History {
	return &History{store: store}
}

// OnEpochEnd implements Callback. Never requests a stop.
func (h *History) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	record := history.Record{
		RunID:   h.Learner().RunID(),
		Epoch:   logs.Epoch,
		IterCnt: logs.IterCnt,
		Loss:    logs.Loss,
		Extra:   logs.Extra,
	}

	if err := h.store.Append(context.Background(), record); err != nil {
		return false, fmt.Errorf("history callback: %w", err)
	}
	return false, nil
}
