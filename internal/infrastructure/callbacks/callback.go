// Package callbacks provides the training-loop callback system: the hook
// contract, the dispatching handler, and the built-in callbacks.
package callbacks

import (
	domainTraining "github.com/blackms/gradflow/internal/domain/training"
)

// Learner is the view of the training loop exposed to callbacks. The
// concrete learner implements it; tests substitute fakes.
type Learner interface {
	// RunID identifies the current training run.
	RunID() string
	// Model returns the model under training.
	Model() domainTraining.Model
	// Optimizer returns the optimizer collaborator.
	Optimizer() domainTraining.Optimizer
	// Config returns the run configuration.
	Config() domainTraining.Config
}

// Callback observes and, at controlled points, steers the training loop.
//
// Transform hooks (OnBatchBegin, AfterOutputs, AfterLosses) receive the
// payload produced by the previous callback and return a possibly-replaced
// payload of the same shape.
//
// Control hooks (OnBackwardBegin, AfterBackward, AfterStep) return a
// "proceed" signal; the handler combines them with logical AND. OnEpochEnd
// returns a "stop training" signal combined with logical OR.
//
// Pure hooks (OnTrainBegin, OnEpochBegin, OnBatchEnd, OnTrainEnd) are
// side-effect only.
//
// Any returned error aborts the run. Callbacks must not assume anything
// about each other's internal state; coordination happens only through the
// payloads and the Learner back-reference.
type Callback interface {
	// Attach injects the learner back-reference. Called exactly once when
	// the callback is registered with a handler; read-only afterward.
	Attach(learner Learner)

	OnTrainBegin() error
	OnEpochBegin(epoch int) error
	OnBatchBegin(batch *domainTraining.Batch, train bool) (*domainTraining.Batch, error)
	AfterOutputs(outputs *domainTraining.Outputs, train bool) (*domainTraining.Outputs, error)
	AfterLosses(losses *domainTraining.Losses, train bool) (*domainTraining.Losses, error)
	OnBackwardBegin() (bool, error)
	AfterBackward() (bool, error)
	AfterStep() (bool, error)
	OnBatchEnd(logs *domainTraining.Logs) error
	OnEpochEnd(logs *domainTraining.Logs) (bool, error)
	OnTrainEnd() error
}

// BaseCallback is a no-op Callback for embedding. Transform hooks pass the
// payload through unchanged, control hooks proceed, the epoch-end hook never
// requests a stop.
type BaseCallback struct {
	learner Learner
}

// Attach implements Callback.
func (b *BaseCallback) Attach(learner Learner) { b.learner = learner }

// Learner returns the attached learner, nil before registration.
func (b *BaseCallback) Learner() Learner { return b.learner }

func (*BaseCallback) OnTrainBegin() error          { return nil }
func (*BaseCallback) OnEpochBegin(epoch int) error { return nil }

func (*BaseCallback) OnBatchBegin(batch *domainTraining.Batch, train bool) (*domainTraining.Batch, error) {
	return batch, nil
}

func (*BaseCallback) AfterOutputs(outputs *domainTraining.Outputs, train bool) (*domainTraining.Outputs, error) {
	return outputs, nil
}

func (*BaseCallback) AfterLosses(losses *domainTraining.Losses, train bool) (*domainTraining.Losses, error) {
	return losses, nil
}

func (*BaseCallback) OnBackwardBegin() (bool, error) { return true, nil }
func (*BaseCallback) AfterBackward() (bool, error)   { return true, nil }
func (*BaseCallback) AfterStep() (bool, error)       { return true, nil }

func (*BaseCallback) OnBatchEnd(logs *domainTraining.Logs) error { return nil }

func (*BaseCallback) OnEpochEnd(logs *domainTraining.Logs) (bool, error) { return false, nil }

func (*BaseCallback) OnTrainEnd() error { return nil }
