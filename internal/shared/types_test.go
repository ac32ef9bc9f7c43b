package shared

import (
	"math"
	"testing"
)

func TestTensorFromRows(t *testing.T) {
	tensor := TensorFromRows([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	if tensor == nil {
		t.Fatal("expected tensor, got nil")
	}
	if tensor.Rows != 2 || tensor.Cols != 3 {
		t.Fatalf("expected 2x3 tensor, got %dx%d", tensor.Rows, tensor.Cols)
	}
	if tensor.At(1, 2) != 6 {
		t.Errorf("expected At(1,2) = 6, got %v", tensor.At(1, 2))
	}
}

func TestTensorFromRowsRagged(t *testing.T) {
	if tensor := TensorFromRows([][]float64{{1, 2}, {3}}); tensor != nil {
		t.Error("expected nil for ragged input")
	}
	if tensor := TensorFromRows(nil); tensor != nil {
		t.Error("expected nil for empty input")
	}
}

func TestTensorGather(t *testing.T) {
	tensor := TensorFromRows([][]float64{
		{1, 1},
		{2, 2},
		{3, 3},
	})

	gathered := tensor.Gather([]int{2, 0, 2})
	if gathered.Rows != 3 {
		t.Fatalf("expected 3 gathered rows, got %d", gathered.Rows)
	}
	if gathered.At(0, 0) != 3 || gathered.At(1, 0) != 1 || gathered.At(2, 0) != 3 {
		t.Errorf("unexpected gathered rows: %v", gathered.Data)
	}

	// Gathered rows must be copies, not aliases.
	gathered.Set(0, 0, 99)
	if tensor.At(2, 0) != 3 {
		t.Error("gather should copy rows, not alias them")
	}
}

func TestTensorCloneIndependence(t *testing.T) {
	tensor := TensorFromRows([][]float64{{1, 2}})
	clone := tensor.Clone()
	clone.Set(0, 0, 42)
	if tensor.At(0, 0) != 1 {
		t.Error("clone should not share storage with original")
	}
}

func TestEuclideanDistance(t *testing.T) {
	d := EuclideanDistance([]float64{0, 0}, []float64{3, 4})
	if math.Abs(d-5) > 1e-9 {
		t.Errorf("expected distance 5, got %v", d)
	}
	if EuclideanDistance([]float64{1}, []float64{1, 2}) != 0 {
		t.Error("mismatched lengths should return 0")
	}
}

func TestCloneStringInterfaceMap(t *testing.T) {
	source := map[string]interface{}{
		"loss":   0.5,
		"nested": map[string]interface{}{"epoch": 3},
		"series": []interface{}{1.0, 2.0},
	}

	cloned := CloneStringInterfaceMap(source)
	if cloned == nil {
		t.Fatal("expected cloned map")
	}

	cloned["nested"].(map[string]interface{})["epoch"] = 99
	if source["nested"].(map[string]interface{})["epoch"] != 3 {
		t.Error("nested map should be deeply cloned")
	}

	if CloneStringInterfaceMap(nil) != nil {
		t.Error("expected nil for nil source")
	}
}

func TestCloneInterfaceValueCycle(t *testing.T) {
	cyclic := map[string]interface{}{}
	cyclic["self"] = cyclic

	cloned, ok := CloneInterfaceValue(cyclic).(map[string]interface{})
	if !ok {
		t.Fatal("expected cloned map")
	}
	inner, ok := cloned["self"].(map[string]interface{})
	if !ok {
		t.Fatal("expected cyclic entry to survive cloning")
	}
	if len(inner) != len(cloned) {
		t.Error("cycle should point back at the clone")
	}
}
