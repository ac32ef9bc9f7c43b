package mining

import (
	"sort"

	"github.com/blackms/gradflow/internal/shared"
)

// AllTriplets emits a triplet for every positive pair (a, p) crossed with
// every negative pair (n0, n1) sharing the anchor, i.e. n0 == a. The join is
// deliberately asymmetric: negatives attached to p are not considered.
// Output is anchor-major, following positive-pair enumeration order.
type AllTriplets struct{}

// NewAllTriplets creates an AllTriplets selector.
func NewAllTriplets() *AllTriplets { return &AllTriplets{} }

// Triplets implements TripletSelector.
func (*AllTriplets) Triplets(emb *shared.Tensor, labels []int) []Triplet {
	pos, neg := NewAllPairs().Pairs(emb, labels)

	var triplets []Triplet
	for _, p := range pos {
		for _, n := range neg {
			if p[0] == n[0] {
				triplets = append(triplets, Triplet{Anchor: p[0], Positive: p[1], Negative: n[1]})
			}
		}
	}
	return triplets
}

// BatchHard implements the batch-hard strategy: for each anchor, the
// furthest same-class example becomes the positive and the nearest
// out-of-class example becomes the negative.
//
// Classes with fewer than two members, or with no out-of-class example in
// the batch, contribute zero triplets. Ties on distance resolve to the
// lowest candidate index, and classes are visited in ascending label order,
// so output is deterministic for a fixed input.
//
// Reference: Hermans et al., "In Defense of the Triplet Loss for Person
// Re-Identification" (arXiv:1703.07737).
type BatchHard struct {
	// Squared selects the squared-distance matrix. Argmin/argmax are
	// unaffected; the flag only matters if the matrix is reused.
	Squared bool
}

// NewBatchHard creates a BatchHard selector using squared distances.
func NewBatchHard() *BatchHard { return &BatchHard{Squared: true} }

// Triplets implements TripletSelector.
func (s *BatchHard) Triplets(emb *shared.Tensor, labels []int) []Triplet {
	dist := PairwiseDistances(emb, s.Squared)

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	var triplets []Triplet
	for _, c := range classes {
		members := byClass[c]
		if len(members) < 2 {
			continue
		}

		var others []int
		for i, label := range labels {
			if label != c {
				others = append(others, i)
			}
		}
		if len(others) == 0 {
			continue
		}

		for _, anchor := range members {
			hardestPos := -1
			maxDist := -1.0
			for _, p := range members {
				if p == anchor {
					continue
				}
				if d := dist.At(anchor, p); d > maxDist {
					maxDist = d
					hardestPos = p
				}
			}

			hardestNeg := -1
			minDist := 0.0
			for _, n := range others {
				if d := dist.At(anchor, n); hardestNeg < 0 || d < minDist {
					minDist = d
					hardestNeg = n
				}
			}

			triplets = append(triplets, Triplet{Anchor: anchor, Positive: hardestPos, Negative: hardestNeg})
		}
	}

	return triplets
}
