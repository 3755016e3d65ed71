package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"delaycalc/internal/benchmark"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyStore   string
	historyDSN     string
	historyLimit   int
	historyVariant string
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved sweep runs",
	Long:  `List sweep runs saved with 'delaycalc sweep --save', newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyStore, "store", "", "History backend: json, sqlite, postgres (default from config)")
	historyCmd.Flags().StringVar(&historyDSN, "dsn", "", "History file path or Postgres DSN (default from config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyVariant, "only", "", "Only show runs of this profile")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := benchmark.StoreConfig{Type: settings.Store.Type, ConnectionString: settings.Store.DSN}
	if historyStore != "" {
		cfg.Type = historyStore
	}
	if historyDSN != "" {
		cfg.ConnectionString = historyDSN
	}

	store, err := newStoreFunc(cfg)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	all, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	// newest first
	var runs []benchmark.Run
	for i := len(all) - 1; i >= 0; i-- {
		if historyVariant != "" && !strings.EqualFold(all[i].Variant, historyVariant) {
			continue
		}
		runs = append(runs, all[i])
		if historyLimit > 0 && len(runs) == historyLimit {
			break
		}
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []benchmark.Run{}
		}
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No saved runs.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tPROFILE\tCASES\tSAMPLES\tCOMMIT")
	for _, r := range runs {
		samples := 0
		for _, c := range r.Cases {
			samples += len(c.Samples)
		}
		commit := r.Commit
		if commit == "" {
			commit = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, humanize.Time(r.Timestamp), r.Variant, len(r.Cases), humanize.Comma(int64(samples)), commit)
	}
	return w.Flush()
}
