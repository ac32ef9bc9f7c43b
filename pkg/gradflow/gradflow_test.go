package gradflow

import (
	"context"
	"testing"
)

// decayModel shrinks toward zero under decayOptimizer, so the loss against
// zero targets decreases every step.
type decayModel struct {
	weights []float64
}

func (m *decayModel) Forward(inputs *Tensor) *Tensor {
	out := NewTensor(inputs.Rows, 1)
	for r := 0; r < inputs.Rows; r++ {
		var y float64
		for c := 0; c < inputs.Cols; c++ {
			y += inputs.At(r, c) * m.weights[c]
		}
		out.Set(r, 0, y)
	}
	return out
}

func (m *decayModel) Parameters() []Parameter {
	return []Parameter{{Name: "weights", Data: m.weights}}
}

type decayOptimizer struct {
	model *decayModel
}

func (o *decayOptimizer) Backward(loss float64) {}
func (o *decayOptimizer) Step() {
	for i := range o.model.weights {
		o.model.weights[i] *= 0.5
	}
}
func (o *decayOptimizer) ZeroGrad() {}

func mse(outputs, labels *Tensor) float64 {
	var sum float64
	for i, v := range outputs.Data {
		d := v - labels.Data[i]
		sum += d * d
	}
	return sum / float64(len(outputs.Data))
}

func TestFacadeTrainingRoundTrip(t *testing.T) {
	model := &decayModel{weights: []float64{4}}
	data := SliceDataSource{
		{
			Inputs: TensorFromRows([][]float64{{1}}),
			Labels: TensorFromRows([][]float64{{0}}),
		},
	}

	store := NewMemoryHistoryStore()
	defer store.Close()

	logger := NewLossLogger(nil)
	summary, err := NewLearner(model, mse, &decayOptimizer{model: model}, data, DefaultConfig()).
		Train(context.Background(), 3, logger, NewHistoryCallback(store))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Epochs != 3 || summary.Reason != StopReasonExhausted {
		t.Errorf("unexpected summary: %+v", summary)
	}

	means := logger.EpochMeans()
	if len(means) != 3 {
		t.Fatalf("expected 3 epoch means, got %v", means)
	}
	for i := 1; i < len(means); i++ {
		if means[i] >= means[i-1] {
			t.Errorf("decaying weights should shrink the loss, got %v", means)
		}
	}

	records, err := store.Records(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 history records, got %d", len(records))
	}
}

func TestFacadeMiningRoundTrip(t *testing.T) {
	emb := TensorFromRows([][]float64{
		{0, 0},
		{0, 1},
		{5, 5},
		{5, 6},
	})
	labels := []int{0, 0, 1, 1}

	selection := SelectTriplets(NewBatchHard(), emb, labels)
	if selection.Anchors.Rows != 4 {
		t.Errorf("expected one triplet per anchor, got %d", selection.Anchors.Rows)
	}

	pairs := SelectPairs(NewAllPairs(), emb, labels)
	if len(pairs.Similar) != 6 {
		t.Errorf("expected 6 pairs, got %d", len(pairs.Similar))
	}

	distances := PairwiseDistances(emb, true)
	if distances.At(0, 1) != 1 {
		t.Errorf("expected squared distance 1, got %v", distances.At(0, 1))
	}
}
