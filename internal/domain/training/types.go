// Package training provides training-loop domain entities and the
// collaborator contracts the learner drives.
package training

import (
	"sort"

	"github.com/blackms/gradflow/internal/shared"
)

// DefaultLossName is the loss entry produced by the criterion when no other
// name is configured.
const DefaultLossName = "loss"

// DefaultOutputName is the model output entry produced by the forward pass.
const DefaultOutputName = "output"

// ============================================================================
// Payloads
// ============================================================================

// Batch is the payload threaded through batch-level transform hooks. Inputs
// and Labels are the fixed roles; Extra carries callback-defined tensors.
// Hooks may substitute tensors, not just inspect them.
type Batch struct {
	Inputs *shared.Tensor
	Labels *shared.Tensor
	Extra  map[string]*shared.Tensor
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	out := &Batch{
		Inputs: b.Inputs.Clone(),
		Labels: b.Labels.Clone(),
	}
	if b.Extra != nil {
		out.Extra = make(map[string]*shared.Tensor, len(b.Extra))
		for name, tensor := range b.Extra {
			out.Extra[name] = tensor.Clone()
		}
	}
	return out
}

// Outputs is the payload threaded through the after-outputs hook. Output is
// the fixed role; Extra carries additional named outputs.
type Outputs struct {
	Output *shared.Tensor
	Extra  map[string]*shared.Tensor
}

// Get returns the named output, treating DefaultOutputName as the fixed
// Output role.
func (o *Outputs) Get(name string) (*shared.Tensor, bool) {
	if name == DefaultOutputName {
		return o.Output, o.Output != nil
	}
	tensor, ok := o.Extra[name]
	return tensor, ok
}

// Losses accumulates named scalar loss values. Regularization callbacks add
// into an existing entry; referencing a missing entry is a configuration
// error and fails the run.
type Losses struct {
	values map[string]float64
}

// NewLosses creates a losses payload seeded with a single entry.
func NewLosses(name string, value float64) *Losses {
	return &Losses{values: map[string]float64{name: value}}
}

// Get returns the named loss value.
func (l *Losses) Get(name string) (float64, bool) {
	v, ok := l.values[name]
	return v, ok
}

// Set creates or overwrites the named loss value.
func (l *Losses) Set(name string, value float64) {
	if l.values == nil {
		l.values = make(map[string]float64)
	}
	l.values[name] = value
}

// Add accumulates delta into an existing entry. Returns ErrMissingLossKey
// when the entry does not exist.
func (l *Losses) Add(name string, delta float64) error {
	if _, ok := l.values[name]; !ok {
		return shared.ErrMissingLossKey
	}
	l.values[name] += delta
	return nil
}

// Has reports whether the named loss entry exists.
func (l *Losses) Has(name string) bool {
	_, ok := l.values[name]
	return ok
}

// Names returns the loss entry names in ascending order.
func (l *Losses) Names() []string {
	names := make([]string, 0, len(l.values))
	for name := range l.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Logs is the payload delivered to batch-end and epoch-end hooks.
type Logs struct {
	// Epoch is the current epoch index, starting at 0.
	Epoch int
	// IterCnt is the batch counter, monotonically increasing across the
	// whole run.
	IterCnt int
	// Loss is the scalar training loss of the most recent batch or epoch.
	Loss float64
	// AllocatedMemory is device memory telemetry in bytes, 0 when the
	// run does not track memory.
	AllocatedMemory int64
	// Extra carries callback-defined entries.
	Extra map[string]interface{}
}

// Clone returns a deep copy of the logs, including the Extra map.
func (lg *Logs) Clone() *Logs {
	if lg == nil {
		return nil
	}
	out := *lg
	out.Extra = shared.CloneStringInterfaceMap(lg.Extra)
	return &out
}

// ============================================================================
// Collaborator Contracts
// ============================================================================

// Parameter is a named, mutable model parameter. Data is updated in place by
// the optimizer and read by parameter-averaging callbacks.
type Parameter struct {
	Name string
	Data []float64
}

// Model produces outputs from inputs and exposes its parameters. Parameter
// order is stable across calls within a run.
type Model interface {
	Forward(inputs *shared.Tensor) *shared.Tensor
	Parameters() []Parameter
}

// Criterion computes a scalar loss from model outputs and batch labels.
type Criterion func(outputs, labels *shared.Tensor) float64

// Optimizer owns gradient state. Backward, Step and ZeroGrad are opaque
// side-effecting calls; the learner gates each behind control dispatch.
type Optimizer interface {
	Backward(loss float64)
	Step()
	ZeroGrad()
}

// DataSource yields the batches of one epoch. The learner consumes it once
// per epoch, in order.
type DataSource interface {
	Batches() []*Batch
}

// SliceDataSource adapts a fixed batch slice as a DataSource.
type SliceDataSource []*Batch

// Batches implements DataSource.
func (s SliceDataSource) Batches() []*Batch { return s }
