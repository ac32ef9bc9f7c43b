package callbacks

import (
	domainTraining "github.com/blackms/gradflow/internal/domain/training"
)

// Timescale selects the counter driving an averaging-style callback.
type Timescale string

const (
	// TimescaleEpoch updates on the epoch counter at epoch end.
	TimescaleEpoch Timescale = "epoch"
	// TimescaleIter updates on the global batch counter at batch end.
	TimescaleIter Timescale = "iter"
)

// StochasticWeightAveraging maintains a running average of model parameters.
//
// The update re-derives the sample count from the configured counter on
// every call:
//
//	n   = (t - averageAfter) / updateEvery
//	avg = (param + n*avg) / (n + 1)
//
// where t is the epoch or iteration index. The recurrence is sensitive to
// averageAfter and updateEvery and is applied exactly as written; do not
// replace it with a stored running count.
//
// Reference: Izmailov et al., "Averaging Weights Leads to Wider Optima and
// Better Generalization" (arXiv:1803.05407).
type StochasticWeightAveraging struct {
	BaseCallback
	averaged     []domainTraining.Parameter
	averageAfter int
	updateEvery  int
	timescale    Timescale
}

// NewStochasticWeightAveraging creates an SWA callback seeded from the
// model's current parameters. The seed is a defensive copy: later in-place
// optimizer updates must not reach the averaged weights except through the
// recurrence. averageAfter is the first counter value to fold in;
// updateEvery is the counter stride (minimum 1).
func NewStochasticWeightAveraging(model domainTraining.Model, averageAfter, updateEvery int, timescale Timescale) *StochasticWeightAveraging {
	if updateEvery < 1 {
		updateEvery = 1
	}
	if timescale != TimescaleEpoch {
		timescale = TimescaleIter
	}

	params := model.Parameters()
	averaged := make([]domainTraining.Parameter, len(params))
	for i, p := range params {
		data := make([]float64, len(p.Data))
		copy(data, p.Data)
		averaged[i] = domainTraining.Parameter{Name: p.Name, Data: data}
	}

	return &StochasticWeightAveraging{
		averaged:     averaged,
		averageAfter: averageAfter,
		updateEvery:  updateEvery,
		timescale:    timescale,
	}
}

// OnEpochEnd implements Callback. Never requests a stop.
func (s *StochasticWeightAveraging) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	if s.timescale == TimescaleEpoch {
		s.maybeUpdate(logs.Epoch)
	}
	return false, nil
}

// OnBatchEnd implements Callback.
func (s *StochasticWeightAveraging) OnBatchEnd(logs *domainTraining.Logs) error {
	if s.timescale == TimescaleIter {
		s.maybeUpdate(logs.IterCnt)
	}
	return nil
}

func (s *StochasticWeightAveraging) maybeUpdate(t int) {
	if t < s.averageAfter || t%s.updateEvery != 0 {
		return
	}

	n := float64((t - s.averageAfter) / s.updateEvery)

	byName := make(map[string][]float64, len(s.averaged))
	for _, avg := range s.averaged {
		byName[avg.Name] = avg.Data
	}

	for _, p := range s.Learner().Model().Parameters() {
		avg, ok := byName[p.Name]
		if !ok || len(avg) != len(p.Data) {
			continue
		}
		for i := range avg {
			avg[i] = (p.Data[i] + n*avg[i]) / (n + 1)
		}
	}
}

// AveragedParameters returns the post-training averaged parameters.
func (s *StochasticWeightAveraging) AveragedParameters() []domainTraining.Parameter {
	return s.averaged
}
