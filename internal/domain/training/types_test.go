package training

import (
	"errors"
	"testing"

	"github.com/blackms/gradflow/internal/shared"
)

func TestLossesAddExisting(t *testing.T) {
	losses := NewLosses("loss", 1.0)

	if err := losses.Add("loss", 0.5); err != nil {
		t.Fatalf("unexpected error adding to existing entry: %v", err)
	}

	v, ok := losses.Get("loss")
	if !ok || v != 1.5 {
		t.Errorf("expected loss 1.5, got %v (present=%v)", v, ok)
	}
}

func TestLossesAddMissingKey(t *testing.T) {
	losses := NewLosses("loss", 1.0)

	err := losses.Add("auxiliary", 0.5)
	if !errors.Is(err, shared.ErrMissingLossKey) {
		t.Errorf("expected ErrMissingLossKey, got %v", err)
	}
}

func TestLossesNamesSorted(t *testing.T) {
	losses := NewLosses("loss", 1.0)
	losses.Set("aux", 0.1)
	losses.Set("kl", 0.2)

	names := losses.Names()
	if len(names) != 3 || names[0] != "aux" || names[1] != "kl" || names[2] != "loss" {
		t.Errorf("expected sorted names [aux kl loss], got %v", names)
	}
}

func TestBatchClone(t *testing.T) {
	batch := &Batch{
		Inputs: shared.TensorFromRows([][]float64{{1, 2}}),
		Labels: shared.TensorFromRows([][]float64{{0}}),
		Extra: map[string]*shared.Tensor{
			"mask": shared.TensorFromRows([][]float64{{1}}),
		},
	}

	clone := batch.Clone()
	clone.Inputs.Set(0, 0, 42)
	clone.Extra["mask"].Set(0, 0, 0)

	if batch.Inputs.At(0, 0) != 1 {
		t.Error("clone should not share input storage")
	}
	if batch.Extra["mask"].At(0, 0) != 1 {
		t.Error("clone should not share extra tensor storage")
	}
}

func TestLogsCloneIsolatesExtra(t *testing.T) {
	logs := &Logs{
		Epoch:   2,
		IterCnt: 17,
		Loss:    0.25,
		Extra:   map[string]interface{}{"accuracy": 0.9},
	}

	clone := logs.Clone()
	clone.Extra["accuracy"] = 0.1

	if logs.Extra["accuracy"] != 0.9 {
		t.Error("clone should deep copy the extra map")
	}
	if clone.Epoch != 2 || clone.IterCnt != 17 || clone.Loss != 0.25 {
		t.Error("clone should preserve scalar fields")
	}
}

func TestOutputsGet(t *testing.T) {
	out := &Outputs{
		Output: shared.TensorFromRows([][]float64{{1}}),
		Extra: map[string]*shared.Tensor{
			"hidden": shared.TensorFromRows([][]float64{{2}}),
		},
	}

	if tensor, ok := out.Get(DefaultOutputName); !ok || tensor.At(0, 0) != 1 {
		t.Error("expected fixed output role for the default name")
	}
	if tensor, ok := out.Get("hidden"); !ok || tensor.At(0, 0) != 2 {
		t.Error("expected extra output by name")
	}
	if _, ok := out.Get("missing"); ok {
		t.Error("expected missing output to report absent")
	}
}
