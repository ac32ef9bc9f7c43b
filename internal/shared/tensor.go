package shared

import "math"

// Tensor is a dense row-major float64 matrix. It is the numeric carrier for
// batches, embeddings and model outputs. A vector is a Tensor with Cols == 1
// or a single row, depending on the caller's convention.
type Tensor struct {
	Rows int
	Cols int
	Data []float64
}

// NewTensor allocates a zeroed rows×cols tensor.
func NewTensor(rows, cols int) *Tensor {
	return &Tensor{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// TensorFromRows builds a tensor from a slice of equal-length rows.
// Returns nil for empty or ragged input.
func TensorFromRows(rows [][]float64) *Tensor {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	t := NewTensor(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil
		}
		copy(t.Data[i*cols:(i+1)*cols], row)
	}
	return t
}

// At returns the element at (i, j).
func (t *Tensor) At(i, j int) float64 {
	return t.Data[i*t.Cols+j]
}

// Set stores v at (i, j).
func (t *Tensor) Set(i, j int, v float64) {
	t.Data[i*t.Cols+j] = v
}

// Row returns row i as a slice aliasing the underlying storage.
func (t *Tensor) Row(i int) []float64 {
	return t.Data[i*t.Cols : (i+1)*t.Cols]
}

// SetRow copies values into row i.
func (t *Tensor) SetRow(i int, values []float64) {
	copy(t.Row(i), values)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	out := NewTensor(t.Rows, t.Cols)
	copy(out.Data, t.Data)
	return out
}

// Gather returns a new tensor whose rows are t's rows at the given indices,
// in the given order. Out-of-range indices are the caller's bug and panic.
func (t *Tensor) Gather(indices []int) *Tensor {
	out := NewTensor(len(indices), t.Cols)
	for i, idx := range indices {
		out.SetRow(i, t.Row(idx))
	}
	return out
}

// Equal reports whether two tensors have the same shape and elementwise
// values within eps.
func (t *Tensor) Equal(other *Tensor, eps float64) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Rows != other.Rows || t.Cols != other.Cols {
		return false
	}
	for i := range t.Data {
		if math.Abs(t.Data[i]-other.Data[i]) > eps {
			return false
		}
	}
	return true
}

// Scale multiplies every element in place and returns the tensor.
func (t *Tensor) Scale(factor float64) *Tensor {
	for i := range t.Data {
		t.Data[i] *= factor
	}
	return t
}

// SquaredNorms returns the squared L2 norm of each row.
func (t *Tensor) SquaredNorms() []float64 {
	norms := make([]float64, t.Rows)
	for i := 0; i < t.Rows; i++ {
		var sum float64
		for _, v := range t.Row(i) {
			sum += v * v
		}
		norms[i] = sum
	}
	return norms
}

// EuclideanDistance calculates the Euclidean distance between two vectors.
// Returns a non-negative value where 0 means identical vectors.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return math.Sqrt(sum)
}

// DotProduct calculates the dot product of two vectors.
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(a); i++ {
		sum += a[i] * b[i]
	}

	return sum
}
