package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// History command flags
var (
	historyBackend string
	historyDBPath  string
	historyFormat  string
)

// HistoryCmd is the parent command for training history operations.
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect persisted training history",
	Long: `Commands for inspecting the training history store.

Every training run appends one record per epoch under its run ID;
these commands list the stored runs and dump a run's epoch records.`,
}

// historyRunsCmd lists recorded run IDs.
var historyRunsCmd = &cobra.Command{
	Use:     "runs",
	Aliases: []string{"ls"},
	Short:   "List recorded runs, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(historyBackend, historyDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		if historyFormat == "json" {
			out, _ := json.MarshalIndent(runs, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		for _, run := range runs {
			fmt.Println(run)
		}
		return nil
	},
}

// historyShowCmd dumps the epoch records of one run.
var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the epoch records of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(historyBackend, historyDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Records(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if historyFormat == "json" {
			out, _ := json.MarshalIndent(records, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EPOCH\tITERATIONS\tLOSS\tMEAN LOSS")
		for _, record := range records {
			mean := "-"
			if v, ok := record.Extra["mean_loss"]; ok {
				mean = fmt.Sprintf("%v", v)
			}
			fmt.Fprintf(w, "%d\t%d\t%.6f\t%s\n", record.Epoch, record.IterCnt, record.Loss, mean)
		}
		w.Flush()
		return nil
	},
}

func init() {
	HistoryCmd.PersistentFlags().StringVar(&historyBackend, "backend", "sqlite", "History backend (sqlite|postgres)")
	HistoryCmd.PersistentFlags().StringVar(&historyDBPath, "db", "", "SQLite database path")
	HistoryCmd.PersistentFlags().StringVar(&historyFormat, "format", "table", "Output format (table|json)")

	HistoryCmd.AddCommand(historyRunsCmd)
	HistoryCmd.AddCommand(historyShowCmd)
}
