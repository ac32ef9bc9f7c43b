// Package mining implements pair and triplet selection for metric-learning
// losses.
package mining

import (
	"math"

	"github.com/blackms/gradflow/internal/shared"
)

// PairwiseDistances computes the all-pairs distance matrix between the rows
// of emb. The result is a symmetric N×N tensor with zero diagonal holding
// squared Euclidean distances, or Euclidean distances when squared is false.
//
// This matrix is mining scaffolding only; it never participates in a loss
// term, so no gradient bookkeeping applies to it.
func PairwiseDistances(emb *shared.Tensor, squared bool) *shared.Tensor {
	n := emb.Rows
	dist := shared.NewTensor(n, n)

	// d(i,j)^2 = |i|^2 - 2<i,j> + |j|^2
	norms := emb.SquaredNorms()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := norms[i] - 2*shared.DotProduct(emb.Row(i), emb.Row(j)) + norms[j]
			// The quadratic expansion can go slightly negative for
			// near-identical rows.
			if d < 0 {
				d = 0
			}
			if !squared {
				d = math.Sqrt(d)
			}
			dist.Set(i, j, d)
			dist.Set(j, i, d)
		}
	}

	return dist
}
