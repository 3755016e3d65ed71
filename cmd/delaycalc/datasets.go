package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"profiles"},
	Short:   "List the dataset table of every profile",
	Long: `Print every configured profile with its datasets and base durations.
The active profile is marked with '*'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := settings.ActiveProfile()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tREPORT\tDATASET\tMICROS\tSECONDS")
		for _, p := range settings.Profiles {
			name := p.Name
			if strings.EqualFold(p.Name, active.Name) {
				name += "*"
			}
			for _, d := range p.Datasets {
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%f\n", name, p.Report, d.Label, humanize.Comma(d.Micros), float64(d.Micros)/1e6)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
