package mining

import "github.com/blackms/gradflow/internal/shared"

// AllPairs enumerates every unordered index pair in the batch and partitions
// it by label equality. Self-pairs never occur because enumeration starts at
// j = i+1. Output order is index-ascending with i as the major key, which
// downstream similarity-label construction depends on.
type AllPairs struct{}

// NewAllPairs creates an AllPairs selector.
func NewAllPairs() *AllPairs { return &AllPairs{} }

// Pairs implements PairSelector.
func (*AllPairs) Pairs(_ *shared.Tensor, labels []int) (pos, neg [][2]int) {
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			if labels[i] == labels[j] {
				pos = append(pos, [2]int{i, j})
			} else {
				neg = append(neg, [2]int{i, j})
			}
		}
	}
	return pos, neg
}
