package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	domainMining "github.com/blackms/gradflow/internal/domain/mining"
	"github.com/blackms/gradflow/internal/infrastructure/mining"
	"github.com/blackms/gradflow/internal/shared"
)

// Mine command flags
var (
	mineInput    string
	mineStrategy string
	minePlain    bool
	mineLimit    int
	mineFormat   string
)

// minedBatch is the JSON input layout: one embedding row per sample with
// its integer class label.
type minedBatch struct {
	Embeddings [][]float64 `json:"embeddings"`
	Labels     []int       `json:"labels"`
}

// MineCmd mines pairs or triplets from an embedding batch.
var MineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine sample pairs or triplets from embeddings",
	Long: `Mine training samples from a labeled embedding batch.

The input file holds a JSON object with an "embeddings" matrix and a
parallel "labels" array. Strategies:
  all-pairs     every unordered pair, positives first
  all-triplets  every (anchor, positive, negative) combination
  batch-hard    hardest positive and negative per anchor`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(mineInput)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		var batch minedBatch
		if err := json.Unmarshal(raw, &batch); err != nil {
			return fmt.Errorf("failed to parse input: %w", err)
		}
		if len(batch.Embeddings) != len(batch.Labels) {
			return fmt.Errorf("%w: %d embeddings vs %d labels",
				shared.ErrShapeMismatch, len(batch.Embeddings), len(batch.Labels))
		}

		emb := shared.TensorFromRows(batch.Embeddings)
		if emb == nil {
			return fmt.Errorf("%w: embeddings must be a non-empty rectangular matrix", shared.ErrShapeMismatch)
		}

		switch domainMining.Strategy(mineStrategy) {
		case domainMining.StrategyAllPairs:
			return printPairs(mining.NewAllPairs(), emb, batch.Labels)
		case domainMining.StrategyAllTriplets:
			return printTriplets(mining.NewAllTriplets(), emb, batch.Labels)
		case domainMining.StrategyBatchHard:
			selector := mining.NewBatchHard()
			selector.Squared = !minePlain
			return printTriplets(selector, emb, batch.Labels)
		default:
			return fmt.Errorf("unknown strategy %q (all-pairs|all-triplets|batch-hard)", mineStrategy)
		}
	},
}

func printPairs(selector mining.PairSelector, emb *shared.Tensor, labels []int) error {
	pos, neg := selector.Pairs(emb, labels)

	if mineFormat == "json" {
		pairs := make([]domainMining.Pair, 0, len(pos)+len(neg))
		for _, p := range pos {
			pairs = append(pairs, domainMining.Pair{A: p[0], B: p[1], Positive: true})
		}
		for _, p := range neg {
			pairs = append(pairs, domainMining.Pair{A: p[0], B: p[1]})
		}
		out, _ := json.MarshalIndent(pairs, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIRST\tSECOND\tSIMILAR")
	printed := 0
	for _, p := range pos {
		if mineLimit > 0 && printed >= mineLimit {
			break
		}
		fmt.Fprintf(w, "%d\t%d\t1\n", p[0], p[1])
		printed++
	}
	for _, p := range neg {
		if mineLimit > 0 && printed >= mineLimit {
			break
		}
		fmt.Fprintf(w, "%d\t%d\t0\n", p[0], p[1])
		printed++
	}
	w.Flush()

	fmt.Printf("\n%d positive, %d negative pairs\n", len(pos), len(neg))
	return nil
}

func printTriplets(selector mining.TripletSelector, emb *shared.Tensor, labels []int) error {
	triplets := selector.Triplets(emb, labels)

	if mineFormat == "json" {
		out, _ := json.MarshalIndent(triplets, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANCHOR\tPOSITIVE\tNEGATIVE")
	for i, tr := range triplets {
		if mineLimit > 0 && i >= mineLimit {
			break
		}
		fmt.Fprintf(w, "%d\t%d\t%d\n", tr.Anchor, tr.Positive, tr.Negative)
	}
	w.Flush()

	fmt.Printf("\n%d triplets\n", len(triplets))
	return nil
}

func init() {
	MineCmd.Flags().StringVarP(&mineInput, "input", "i", "", "Input JSON file (required)")
	MineCmd.Flags().StringVarP(&mineStrategy, "strategy", "s", string(domainMining.StrategyBatchHard), "Mining strategy (all-pairs|all-triplets|batch-hard)")
	MineCmd.Flags().BoolVar(&minePlain, "plain-distance", false, "Use plain Euclidean distances instead of squared")
	MineCmd.Flags().IntVarP(&mineLimit, "limit", "l", 50, "Maximum rows to print (0 prints all)")
	MineCmd.Flags().StringVar(&mineFormat, "format", "table", "Output format (table|json)")
	MineCmd.MarkFlagRequired("input")
}
