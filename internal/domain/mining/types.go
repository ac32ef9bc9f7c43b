// Package mining provides domain entities for batch sample mining.
package mining

// Pair is an unordered index pair mined from a batch. Positive reports
// whether both indices carry the same label. A pair never references the
// same index twice.
type Pair struct {
	A        int  `json:"a"`
	B        int  `json:"b"`
	Positive bool `json:"positive"`
}

// Triplet is an (anchor, positive, negative) index triple: the anchor and
// positive share a label, the negative carries a different one.
type Triplet struct {
	Anchor   int `json:"anchor"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Config holds mining configuration.
type Config struct {
	// Squared selects squared Euclidean distances for the pairwise
	// distance matrix. Batch-hard mining ranks identically either way.
	Squared bool `json:"squared"`
}

// DefaultConfig returns sensible defaults for mining.
func DefaultConfig() Config {
	return Config{Squared: true}
}

// Strategy identifies a selector implementation.
type Strategy string

const (
	StrategyAllPairs    Strategy = "all-pairs"
	StrategyAllTriplets Strategy = "all-triplets"
	StrategyBatchHard   Strategy = "batch-hard"
)
