package mining

import (
	domainMining "github.com/blackms/gradflow/internal/domain/mining"
	"github.com/blackms/gradflow/internal/shared"
)

// PairSelector mines index pairs from a labeled embedding batch.
type PairSelector interface {
	// Pairs returns the positive and negative index pairs of the batch.
	// Row i of emb corresponds to labels[i].
	Pairs(emb *shared.Tensor, labels []int) (pos, neg [][2]int)
}

// TripletSelector mines (anchor, positive, negative) index triples from a
// labeled embedding batch.
type TripletSelector interface {
	Triplets(emb *shared.Tensor, labels []int) []Triplet
}

// Triplet aliases the domain triplet for package-local convenience.
type Triplet = domainMining.Triplet

// PairSelection is the gathered output of a pair selector, ready for a
// contrastive loss: First[k] and Second[k] form pair k, Similar[k] is 1 for
// positive pairs and 0 for negative ones. Positives precede negatives.
type PairSelection struct {
	First   *shared.Tensor
	Second  *shared.Tensor
	Similar []float64
}

// TripletSelection is the gathered output of a triplet selector, ready for a
// triplet loss. Row k of each tensor belongs to triplet k.
type TripletSelection struct {
	Anchors   *shared.Tensor
	Positives *shared.Tensor
	Negatives *shared.Tensor
}

// SelectPairs runs a pair selector and gathers embedding rows. Positive
// pairs come first, negative pairs second, with matching similarity labels.
func SelectPairs(s PairSelector, emb *shared.Tensor, labels []int) *PairSelection {
	pos, neg := s.Pairs(emb, labels)

	first := make([]int, 0, len(pos)+len(neg))
	second := make([]int, 0, len(pos)+len(neg))
	similar := make([]float64, 0, len(pos)+len(neg))

	for _, p := range pos {
		first = append(first, p[0])
		second = append(second, p[1])
		similar = append(similar, 1)
	}
	for _, p := range neg {
		first = append(first, p[0])
		second = append(second, p[1])
		similar = append(similar, 0)
	}

	return &PairSelection{
		First:   emb.Gather(first),
		Second:  emb.Gather(second),
		Similar: similar,
	}
}

// SelectTriplets runs a triplet selector and gathers embedding rows.
func SelectTriplets(s TripletSelector, emb *shared.Tensor, labels []int) *TripletSelection {
	triplets := s.Triplets(emb, labels)

	anchors := make([]int, len(triplets))
	positives := make([]int, len(triplets))
	negatives := make([]int, len(triplets))
	for i, tr := range triplets {
		anchors[i] = tr.Anchor
		positives[i] = tr.Positive
		negatives[i] = tr.Negative
	}

	return &TripletSelection{
		Anchors:   emb.Gather(anchors),
		Positives: emb.Gather(positives),
		Negatives: emb.Gather(negatives),
	}
}
