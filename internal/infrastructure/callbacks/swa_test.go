package callbacks

import (
	"math"
	"testing"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
)

func setParam(model *paramModel, values ...float64) {
	copy(model.params[0].Data, values)
}

func swaFixture(averageAfter, updateEvery int, timescale Timescale) (*paramModel, *StochasticWeightAveraging) {
	model := &paramModel{params: []domainTraining.Parameter{
		{Name: "w", Data: []float64{0}},
	}}
	swa := NewStochasticWeightAveraging(model, averageAfter, updateEvery, timescale)
	swa.Attach(&fakeLearner{runID: "run-swa", model: model})
	return model, swa
}

func epochEnd(t *testing.T, swa *StochasticWeightAveraging, epoch int) {
	t.Helper()
	stop, err := swa.OnEpochEnd(&domainTraining.Logs{Epoch: epoch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stop {
		t.Fatal("averaging must never request a stop")
	}
}

func TestSWARunningAverageOnEpochs(t *testing.T) {
	model, swa := swaFixture(1, 1, TimescaleEpoch)

	// Epoch 0 precedes the averaging window.
	setParam(model, 100)
	epochEnd(t, swa, 0)
	if got := swa.AveragedParameters()[0].Data[0]; got != 0 {
		t.Fatalf("epoch before the window must not update the average, got %v", got)
	}

	// n = 0: average replaced by the current weights.
	setParam(model, 2)
	epochEnd(t, swa, 1)
	// n = 1: (4 + 2) / 2.
	setParam(model, 4)
	epochEnd(t, swa, 2)
	// n = 2: (6 + 2*3) / 3.
	setParam(model, 6)
	epochEnd(t, swa, 3)

	if got := swa.AveragedParameters()[0].Data[0]; math.Abs(got-4) > 1e-12 {
		t.Errorf("expected running average 4, got %v", got)
	}
}

func TestSWAUpdateStride(t *testing.T) {
	model, swa := swaFixture(0, 2, TimescaleEpoch)

	// Only even epochs land on the stride.
	setParam(model, 10)
	epochEnd(t, swa, 0)
	setParam(model, 999)
	epochEnd(t, swa, 1)

	if got := swa.AveragedParameters()[0].Data[0]; got != 10 {
		t.Errorf("off-stride epoch must not update the average, got %v", got)
	}

	// Epoch 2 is sample n = 1: (20 + 10) / 2.
	setParam(model, 20)
	epochEnd(t, swa, 2)
	if got := swa.AveragedParameters()[0].Data[0]; math.Abs(got-15) > 1e-12 {
		t.Errorf("expected average 15, got %v", got)
	}
}

func TestSWAIterTimescale(t *testing.T) {
	model, swa := swaFixture(1, 1, TimescaleIter)

	setParam(model, 3)
	if err := swa.OnBatchEnd(&domainTraining.Logs{IterCnt: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	setParam(model, 5)
	if err := swa.OnBatchEnd(&domainTraining.Logs{IterCnt: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Epoch ends are ignored on the iteration timescale.
	setParam(model, 1000)
	epochEnd(t, swa, 0)

	if got := swa.AveragedParameters()[0].Data[0]; math.Abs(got-4) > 1e-12 {
		t.Errorf("expected average 4, got %v", got)
	}
}

func TestSWASeedIsDefensiveCopy(t *testing.T) {
	model := &paramModel{params: []domainTraining.Parameter{
		{Name: "w", Data: []float64{7}},
	}}
	swa := NewStochasticWeightAveraging(model, 0, 1, TimescaleEpoch)

	model.params[0].Data[0] = -1
	if got := swa.AveragedParameters()[0].Data[0]; got != 7 {
		t.Errorf("in-place weight updates must not reach the seed, got %v", got)
	}
}

func TestSWASkipsUnknownParameters(t *testing.T) {
	model, swa := swaFixture(0, 1, TimescaleEpoch)

	// A parameter renamed mid-run no longer matches the averaged set.
	model.params[0].Name = "renamed"
	setParam(model, 50)
	epochEnd(t, swa, 0)

	if got := swa.AveragedParameters()[0].Data[0]; got != 0 {
		t.Errorf("unmatched parameter must be skipped, got %v", got)
	}
}
