package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
)

// Output formats accepted by WriteRun.
const (
	FormatTable    = "table"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatPretty   = "pretty"
)

var columns = []string{"dataset", "threads", "base_s", "expected_s", "mean_s", "median_s", "stddev_s", "min_s", "max_s", "p95_s", "overhead_s", "samples"}

// WriteRun renders run in the given format.
func WriteRun(w io.Writer, run Run, format string) error {
	switch format {
	case FormatTable, "":
		return writeTable(w, run)
	case FormatCSV:
		return writeCSV(w, run)
	case FormatMarkdown:
		return writeMarkdown(w, run)
	case FormatPretty:
		return writePretty(w, run)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	default:
		return fmt.Errorf("unsupported format %q (want table, csv, md, json or pretty)", format)
	}
}

func row(c Case) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return []string{
		c.Dataset,
		strconv.FormatInt(c.Threads, 10),
		f(float64(c.BaseMicros) / 1e6),
		f(c.Expected()),
		f(c.Stats.Mean),
		f(c.Stats.Median),
		f(c.Stats.StdDev),
		f(c.Stats.Min),
		f(c.Stats.Max),
		f(c.Stats.P95),
		f(c.Overhead()),
		strconv.Itoa(len(c.Samples)),
	}
}

func writeTable(w io.Writer, run Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tTHREADS\tEXPECTED\tMEAN\tSTDDEV\tP95\tOVERHEAD")
	for _, c := range run.Cases {
		r := row(c)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r[0], r[1], r[3], r[4], r[6], r[9], r[10])
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, run Run) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, c := range run.Cases {
		if err := cw.Write(row(c)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeMarkdown(w io.Writer, run Run) error {
	line := func(cells []string) {
		fmt.Fprint(w, "|")
		for _, c := range cells {
			fmt.Fprintf(w, " %s |", c)
		}
		fmt.Fprintln(w)
	}
	line(columns)
	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	line(sep)
	for _, c := range run.Cases {
		line(row(c))
	}
	return nil
}

// writePretty renders the markdown table for a terminal.
func writePretty(w io.Writer, run Run) error {
	var md strings.Builder
	fmt.Fprintf(&md, "## Profile %s\n\n", run.Variant)
	fmt.Fprintf(&md, "%d cases, started %s\n\n", len(run.Cases), run.Timestamp.Format(time.RFC3339))
	if err := writeMarkdown(&md, run); err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(160),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
