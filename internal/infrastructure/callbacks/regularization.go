package callbacks

import (
	"fmt"
	"math"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
	"github.com/blackms/gradflow/internal/shared"
)

// Regularizer maps a parameter vector to a scalar penalty.
type Regularizer func(data []float64) float64

// TensorRegularizer maps a tensor to a scalar penalty.
type TensorRegularizer func(t *shared.Tensor) float64

// WeightRegularization penalizes model weights by adding
// lambda * sum(regularizer(p)) over all parameters into a named loss entry
// before backpropagation. The loss entry must already exist; a missing entry
// is a configuration error that fails the run.
type WeightRegularization struct {
	BaseCallback
	regularizer Regularizer
	lambda      float64
	lossName    string
}

// NewWeightRegularization creates a weight regularization callback.
func NewWeightRegularization(regularizer Regularizer, lambda float64, lossName string) *WeightRegularization {
	if lossName == "" {
		lossName = domainTraining.DefaultLossName
	}
	return &WeightRegularization{
		regularizer: regularizer,
		lambda:      lambda,
		lossName:    lossName,
	}
}

// AfterLosses implements Callback.
func (w *WeightRegularization) AfterLosses(losses *domainTraining.Losses, train bool) (*domainTraining.Losses, error) {
	if !train {
		return losses, nil
	}

	var penalty float64
	for _, p := range w.Learner().Model().Parameters() {
		penalty += w.regularizer(p.Data)
	}

	if err := losses.Add(w.lossName, w.lambda*penalty); err != nil {
		return nil, fmt.Errorf("%w: weight regularization expects loss %q", err, w.lossName)
	}
	return losses, nil
}

// NewL1WeightRegularization penalizes the absolute sum of all weights.
func NewL1WeightRegularization(lambda float64, lossName string) *WeightRegularization {
	return NewWeightRegularization(func(data []float64) float64 {
		var sum float64
		for _, v := range data {
			sum += math.Abs(v)
		}
		return sum
	}, lambda, lossName)
}

// NewL2WeightRegularization penalizes the squared sum of all weights.
func NewL2WeightRegularization(lambda float64, lossName string) *WeightRegularization {
	return NewWeightRegularization(func(data []float64) float64 {
		var sum float64
		for _, v := range data {
			sum += v * v
		}
		return sum
	}, lambda, lossName)
}

// NewWeightElimination penalizes each weight by t²/(t²+scale²), a soft count
// of effective parameters. Scale must be positive.
func NewWeightElimination(scale, lambda float64, lossName string) *WeightRegularization {
	return NewWeightRegularization(func(data []float64) float64 {
		var sum float64
		scaleSq := scale * scale
		for _, v := range data {
			sq := v * v
			sum += sq / (sq + scaleSq)
		}
		return sum
	}, lambda, lossName)
}

// ActivationRegularization penalizes a named model output. The output is
// captured at the after-outputs hook and consumed at the after-losses hook;
// the captured reference is cleared after each use so no activation outlives
// its batch.
type ActivationRegularization struct {
	BaseCallback
	outputName  string
	regularizer TensorRegularizer
	lambda      float64
	lossName    string

	captured *shared.Tensor
}

// NewActivationRegularization creates an activation regularization callback
// watching the named output.
func NewActivationRegularization(outputName string, regularizer TensorRegularizer, lambda float64, lossName string) *ActivationRegularization {
	if outputName == "" {
		outputName = domainTraining.DefaultOutputName
	}
	if lossName == "" {
		lossName = domainTraining.DefaultLossName
	}
	return &ActivationRegularization{
		outputName:  outputName,
		regularizer: regularizer,
		lambda:      lambda,
		lossName:    lossName,
	}
}

// AfterOutputs implements Callback.
func (a *ActivationRegularization) AfterOutputs(outputs *domainTraining.Outputs, train bool) (*domainTraining.Outputs, error) {
	if !train {
		return outputs, nil
	}

	tensor, ok := outputs.Get(a.outputName)
	if !ok {
		return nil, fmt.Errorf("%w: activation regularization expects output %q", shared.ErrMissingOutputKey, a.outputName)
	}
	a.captured = tensor
	return outputs, nil
}

// AfterLosses implements Callback.
func (a *ActivationRegularization) AfterLosses(losses *domainTraining.Losses, train bool) (*domainTraining.Losses, error) {
	if !train || a.captured == nil {
		return losses, nil
	}

	penalty := a.regularizer(a.captured)
	a.captured = nil

	if err := losses.Add(a.lossName, a.lambda*penalty); err != nil {
		return nil, fmt.Errorf("%w: activation regularization expects loss %q", err, a.lossName)
	}
	return losses, nil
}

// NewL1ActivationRegularization penalizes the absolute sum of an output.
func NewL1ActivationRegularization(outputName string, lambda float64, lossName string) *ActivationRegularization {
	return NewActivationRegularization(outputName, func(t *shared.Tensor) float64 {
		var sum float64
		for _, v := range t.Data {
			sum += math.Abs(v)
		}
		return sum
	}, lambda, lossName)
}

// NewL2ActivationRegularization penalizes the squared sum of an output.
func NewL2ActivationRegularization(outputName string, lambda float64, lossName string) *ActivationRegularization {
	return NewActivationRegularization(outputName, func(t *shared.Tensor) float64 {
		var sum float64
		for _, v := range t.Data {
			sum += v * v
		}
		return sum
	}, lambda, lossName)
}

// NewStudentTActivationRegularization applies the Student's T penalty
// mean(log(1 + t²)) to an output.
func NewStudentTActivationRegularization(outputName string, lambda float64, lossName string) *ActivationRegularization {
	return NewActivationRegularization(outputName, func(t *shared.Tensor) float64 {
		if len(t.Data) == 0 {
			return 0
		}
		var sum float64
		for _, v := range t.Data {
			sum += math.Log1p(v * v)
		}
		return sum / float64(len(t.Data))
	}, lambda, lossName)
}
