package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"delaycalc/internal/benchmark"
	"delaycalc/internal/config"
	"delaycalc/internal/metrics"
	"delaycalc/internal/notify"
	"delaycalc/internal/telemetry"
	"delaycalc/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Seams for tests.
var (
	newStoreFunc = func(cfg benchmark.StoreConfig) (benchmark.Store, error) { return benchmark.NewStore(cfg) }
	// sweepExecCommand is used to look up the git commit of saved runs.
	sweepExecCommand = exec.Command
	newNotifier      = func(s config.NotifySettings) *notify.Manager { return notify.NewManager(s, slog.Default()) }
)

type sweepOptions struct {
	threads          []int64
	datasets         []string
	repeat           int
	format           string
	save             bool
	compare          bool
	threshold        float64
	failOnRegression bool
	storeType        string
	dsn              string
	execPath         string
	execArgs         []string
	metricsAddr      string
	progress         bool
}

func newSweepCmd() *cobra.Command {
	opts := &sweepOptions{}
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the delay over a matrix of thread counts and datasets",
		Long: `Runs every (dataset, thread count) case of the active profile several
times, measures the wall-clock time of each run and summarises it (mean,
median, stddev, min, max, p95, overhead over the planned delay).

Cases run in-process by default. With --exec each run launches an external
program as '<program> [--exec-arg ...] <threads> <dataset>', which is how a
compiled fixture can be measured against its expected delays.

Results can be saved to a history store (json, sqlite or postgres) and
compared with the previous run of the same profile. Regressions beyond the
threshold are posted to Slack when notify.slack is configured.`,
		Example: `  delaycalc sweep --threads 1,2,4,8 --repeat 5
  delaycalc sweep --variant C --datasets data3 --format csv
  delaycalc sweep --save --compare --store sqlite
  delaycalc sweep --progress --format pretty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = settings.Threshold
			}
			return runSweep(cmd, opts)
		},
	}

	cmd.Flags().Int64SliceVar(&opts.threads, "threads", []int64{1, 2, 4, 8}, "Thread counts to run")
	cmd.Flags().StringSliceVar(&opts.datasets, "datasets", nil, "Datasets to run (default: every dataset of the profile)")
	cmd.Flags().IntVar(&opts.repeat, "repeat", 3, "Runs per case")
	cmd.Flags().StringVarP(&opts.format, "format", "f", benchmark.FormatTable, "Output format: table, csv, md, json, pretty")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save results to history")
	cmd.Flags().BoolVar(&opts.compare, "compare", false, "Compare with the previous saved run of this profile")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 10.0, "Percentage threshold for regression warning (default from config)")
	cmd.Flags().BoolVar(&opts.failOnRegression, "fail-on-regression", false, "Exit non-zero when a case regressed beyond the threshold")
	cmd.Flags().StringVar(&opts.storeType, "store", "", "History backend: json, sqlite, postgres (default from config)")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "History file path or Postgres DSN (default from config)")
	cmd.Flags().StringVar(&opts.execPath, "exec", "", "Measure an external program instead of sleeping in-process")
	cmd.Flags().StringArrayVar(&opts.execArgs, "exec-arg", nil, "Argument passed to --exec before <threads> <dataset> (repeatable)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the sweep runs")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar on stderr")

	return cmd
}

func init() {
	rootCmd.AddCommand(newSweepCmd())
}

func runSweep(cmd *cobra.Command, opts *sweepOptions) error {
	profile, err := settings.ActiveProfile()
	if err != nil {
		return err
	}

	runner := benchmark.NewRunner(profile)
	if opts.execPath != "" {
		runner.Executor = &benchmark.CommandExecutor{Path: opts.execPath, Args: opts.execArgs}
	} else {
		runner.Executor = &benchmark.InProcessExecutor{Profile: profile, Sleeper: newSleeper()}
	}

	m := metrics.NewMetrics()
	runner.Metrics = m
	defer writeMetrics(m)

	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, m)
		defer stop()
	}

	matrix := benchmark.Matrix{Threads: opts.threads, Datasets: opts.datasets, Repeat: opts.repeat}
	plan, err := runner.Plan(matrix)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Running sweep: profile %s, %d cases x %d runs\n", profile.Name, len(plan), opts.repeat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var finishProgress func(error)
	if opts.progress {
		finishProgress = startProgress(cmd, runner, profile.Name, len(plan)*opts.repeat, cancel)
	}

	run, err := runner.Run(ctx, matrix)
	if finishProgress != nil {
		finishProgress(err)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := benchmark.WriteRun(out, run, opts.format); err != nil {
		return err
	}

	if !opts.save && !opts.compare {
		return nil
	}

	cfg := benchmark.StoreConfig{Type: settings.Store.Type, ConnectionString: settings.Store.DSN}
	if opts.storeType != "" {
		cfg.Type = opts.storeType
	}
	if opts.dsn != "" {
		cfg.ConnectionString = opts.dsn
	}
	store, err := newStoreFunc(cfg)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	regressions := 0
	if opts.compare {
		prev, err := store.LoadLatest(profile.Name)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		// keep machine-readable output clean
		w := out
		if opts.format != benchmark.FormatTable {
			w = errOut
		}
		if prev == nil {
			fmt.Fprintf(w, "\nNo previous run of profile %s to compare with.\n", profile.Name)
		} else {
			comps := benchmark.Compare(*prev, run)
			fmt.Fprintf(w, "\nCompared with run %d (%s):\n", prev.ID, prev.Timestamp.Format(time.RFC3339))
			printComparison(w, comps, opts.threshold)
			regressions = benchmark.Regressions(comps, opts.threshold)
			if regressions > 0 {
				notifyRegressions(ctx, errOut, profile.Name, comps, opts.threshold)
			}
		}
	}

	if opts.save {
		if c, err := gitCommit(); err == nil {
			run.Commit = c
		}
		if err := store.Save(&run); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
		fmt.Fprintf(errOut, "Results saved as run %d\n", run.ID)
		telemetry.LogInfof("sweep run %d of profile %s saved to %s store", run.ID, run.Variant, cfg.Type)
	}

	if opts.failOnRegression && regressions > 0 {
		return fmt.Errorf("%d case(s) regressed by more than %.1f%%", regressions, opts.threshold)
	}
	return nil
}

func printComparison(w io.Writer, comps []benchmark.Comparison, threshold float64) {
	r := lipgloss.NewRenderer(w)
	styles := map[string]lipgloss.Style{
		benchmark.StatusFail:     r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		benchmark.StatusImproved: r.NewStyle().Foreground(lipgloss.Color("42")),
		benchmark.StatusPass:     r.NewStyle(),
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "CASE\tPREV MEAN\tMEAN\tDIFF %\tOVERHEAD Δ\tSTATUS")
	for _, c := range comps {
		status := c.Status(threshold)
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%+.2f%%\t%+.6f\t%s\n",
			c.Key, c.Prev.Stats.Mean, c.Curr.Stats.Mean, c.MeanDiff, c.OverheadAbs, styles[status].Render(status))
	}
	tw.Flush()
}

// startProgress runs a progress view fed by runner. The returned func stops
// the view and waits for it to exit.
func startProgress(cmd *cobra.Command, runner *benchmark.Runner, profile string, total int, cancel func()) func(error) {
	model := ui.NewSweepProgressModel(profile, total)
	model.OnQuit = cancel

	teaOpts := []tea.ProgramOption{tea.WithOutput(cmd.ErrOrStderr())}
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		teaOpts = append(teaOpts, tea.WithInput(f))
	} else {
		teaOpts = append(teaOpts, tea.WithInput(nil))
	}
	p := tea.NewProgram(model, teaOpts...)

	runner.OnSample = func(key string, done, total int, elapsed time.Duration) {
		p.Send(ui.SampleMsg{Key: key, Done: done, Total: total, Elapsed: elapsed})
	}

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if _, err := p.Run(); err != nil {
			slog.Warn("progress view failed", "error", err)
		}
	}()

	return func(err error) {
		p.Send(ui.DoneMsg{Err: err})
		<-exited
	}
}

// notifyRegressions reports regressed cases to the configured notifiers.
// Delivery failures are warnings only.
func notifyRegressions(ctx context.Context, errOut io.Writer, profile string, comps []benchmark.Comparison, threshold float64) {
	m := newNotifier(settings.Notify)
	if !m.Enabled() {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "delaycalc sweep: profile %s regressed by more than %.1f%%", profile, threshold)
	for _, c := range comps {
		if c.Status(threshold) == benchmark.StatusFail {
			fmt.Fprintf(&b, "\n• %s", c)
		}
	}

	if err := m.Notify(ctx, b.String()); err != nil {
		fmt.Fprintf(errOut, "Warning: failed to send regression notification: %v\n", err)
	}
}

// serveMetrics exposes m until the returned func is called.
func serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func gitCommit() (string, error) {
	out, err := sweepExecCommand("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
