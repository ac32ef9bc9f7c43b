package callbacks

import (
	"fmt"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
)

// Handler dispatches lifecycle hooks to an ordered callback list. The order
// is fixed at construction and determines both call order and aggregation
// order; there is no reordering during a run.
//
// Dispatch is synchronous and single-threaded: each hook runs to completion
// before the next callback is invoked, and the payload of a dispatch call is
// owned by that call.
type Handler struct {
	callbacks []Callback
}

// NewHandler creates a handler and attaches the learner back-reference to
// every callback, in registration order.
func NewHandler(learner Learner, cbs ...Callback) *Handler {
	for _, cb := range cbs {
		cb.Attach(learner)
	}
	return &Handler{callbacks: cbs}
}

// Callbacks returns the registered callbacks in dispatch order.
func (h *Handler) Callbacks() []Callback { return h.callbacks }

// OnTrainBegin fires the train-begin hook on every callback.
func (h *Handler) OnTrainBegin() error {
	for _, cb := range h.callbacks {
		if err := cb.OnTrainBegin(); err != nil {
			return fmt.Errorf("callback on_train_begin: %w", err)
		}
	}
	return nil
}

// OnEpochBegin fires the epoch-begin hook on every callback.
func (h *Handler) OnEpochBegin(epoch int) error {
	for _, cb := range h.callbacks {
		if err := cb.OnEpochBegin(epoch); err != nil {
			return fmt.Errorf("callback on_epoch_begin: %w", err)
		}
	}
	return nil
}

// OnBatchBegin folds the batch payload through every callback: the output of
// callback i is the input of callback i+1. With no callbacks registered the
// batch passes through unchanged.
func (h *Handler) OnBatchBegin(batch *domainTraining.Batch, train bool) (*domainTraining.Batch, error) {
	var err error
	for _, cb := range h.callbacks {
		batch, err = cb.OnBatchBegin(batch, train)
		if err != nil {
			return nil, fmt.Errorf("callback on_batch_begin: %w", err)
		}
	}
	return batch, nil
}

// AfterOutputs folds the model-output payload through every callback.
func (h *Handler) AfterOutputs(outputs *domainTraining.Outputs, train bool) (*domainTraining.Outputs, error) {
	var err error
	for _, cb := range h.callbacks {
		outputs, err = cb.AfterOutputs(outputs, train)
		if err != nil {
			return nil, fmt.Errorf("callback after_outputs: %w", err)
		}
	}
	return outputs, nil
}

// AfterLosses folds the loss payload through every callback.
func (h *Handler) AfterLosses(losses *domainTraining.Losses, train bool) (*domainTraining.Losses, error) {
	var err error
	for _, cb := range h.callbacks {
		losses, err = cb.AfterLosses(losses, train)
		if err != nil {
			return nil, fmt.Errorf("callback after_losses: %w", err)
		}
	}
	return losses, nil
}

// OnBackwardBegin asks every callback whether the backward pass should run
// and ANDs the answers. Every callback is invoked even after one has already
// answered false: callbacks rely on the hook firing for their side effects,
// only the combined decision gates the backward pass.
func (h *Handler) OnBackwardBegin() (bool, error) {
	proceed := true
	for _, cb := range h.callbacks {
		ok, err := cb.OnBackwardBegin()
		if err != nil {
			return false, fmt.Errorf("callback on_backward_begin: %w", err)
		}
		proceed = proceed && ok
	}
	return proceed, nil
}

// AfterBackward asks every callback whether the optimizer step should run
// and ANDs the answers. All callbacks are invoked regardless of earlier
// vetoes.
func (h *Handler) AfterBackward() (bool, error) {
	proceed := true
	for _, cb := range h.callbacks {
		ok, err := cb.AfterBackward()
		if err != nil {
			return false, fmt.Errorf("callback after_backward: %w", err)
		}
		proceed = proceed && ok
	}
	return proceed, nil
}

// AfterStep asks every callback whether accumulated gradients should be
// cleared and ANDs the answers. All callbacks are invoked regardless of
// earlier vetoes.
func (h *Handler) AfterStep() (bool, error) {
	proceed := true
	for _, cb := range h.callbacks {
		ok, err := cb.AfterStep()
		if err != nil {
			return false, fmt.Errorf("callback after_step: %w", err)
		}
		proceed = proceed && ok
	}
	return proceed, nil
}

// OnBatchEnd fires the batch-end hook on every callback.
func (h *Handler) OnBatchEnd(logs *domainTraining.Logs) error {
	for _, cb := range h.callbacks {
		if err := cb.OnBatchEnd(logs); err != nil {
			return fmt.Errorf("callback on_batch_end: %w", err)
		}
	}
	return nil
}

// OnEpochEnd asks every callback whether training should stop after the
// current epoch and ORs the answers: a single true is enough. All callbacks
// are invoked either way.
func (h *Handler) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	stop := false
	for _, cb := range h.callbacks {
		s, err := cb.OnEpochEnd(logs)
		if err != nil {
			return false, fmt.Errorf("callback on_epoch_end: %w", err)
		}
		stop = stop || s
	}
	return stop, nil
}

// OnTrainEnd fires the train-end hook on every callback.
func (h *Handler) OnTrainEnd() error {
	for _, cb := range h.callbacks {
		if err := cb.OnTrainEnd(); err != nil {
			return fmt.Errorf("callback on_train_end: %w", err)
		}
	}
	return nil
}
