package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"delaycalc/internal/config"
	"delaycalc/internal/delay"
	"delaycalc/internal/metrics"
	"delaycalc/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit

var (
	cfgFile  string
	report   bool
	settings *config.Settings

	// newSleeper allows tests to skip the wall-clock wait.
	newSleeper = func() delay.Sleeper { return delay.SystemSleeper{} }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "delaycalc [flags] <thread_count> <dataset_label>",
	Short: "Sleep for a dataset's base duration divided by a thread count",
	Long: `delaycalc looks up the base duration of a dataset label in the active
profile, divides it by the thread count and sleeps for the result.

Reporting profiles print the per-thread delay in seconds on stdout and the
base duration in seconds on stderr, without trailing newlines, so a benchmark
harness can read both as metrics.

Exit codes: 0 success, 1 configuration or I/O failure, 2 invalid argument,
3 unknown dataset, 4 zero thread count.`,
	Example: `  delaycalc 4 data2
  delaycalc --variant C 2 data3
  delaycalc -- -1 data1`,
	Args:              cobra.ArbitraryArgs,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE:              runDelay,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Wrap Execute in panic recovery for graceful shutdown
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(delay.ExitFailure)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		exit(delay.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./delaycalc.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging (to stderr unless --log-file is set)")
	rootCmd.PersistentFlags().String("variant", "", "Profile to use (overrides config and DELAYCALC_VARIANT)")
	rootCmd.PersistentFlags().String("log-file", "", "Append JSON logs to this file")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.Flags().BoolVar(&report, "report", false, "Force reporting on or off regardless of the profile")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &delay.Error{Kind: delay.InvalidArgument, Arg: "arguments", Err: err}
	})
}

// persistentKeys maps viper keys to root persistent flags.
var persistentKeys = map[string]string{
	"verbose":      "verbose",
	"variant":      "variant",
	"log_file":     "log-file",
	"metrics_file": "metrics-file",
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cmd *cobra.Command, args []string) error {
	for key, flag := range persistentKeys {
		f := cmd.Root().PersistentFlags().Lookup(flag)
		// Only explicit flags override config; empty defaults must not mask it.
		if f.Changed {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	if err := config.Load(cfgFile); err != nil {
		return err
	}
	if err := config.ValidateConfig(); err != nil {
		return err
	}

	var err error
	settings, err = config.Current()
	if err != nil {
		return err
	}

	var console io.Writer
	if settings.Verbose && settings.LogFile == "" {
		console = cmd.ErrOrStderr()
	}
	telemetry.InitLogger(settings.Verbose, settings.LogFile, console)
	slog.Debug("configuration loaded", "config", viper.ConfigFileUsed(), "variant", settings.Variant)
	return nil
}

func runDelay(cmd *cobra.Command, args []string) error {
	profile, err := settings.ActiveProfile()
	if err != nil {
		return err
	}

	calc := delay.NewCalculator(profile, cmd.OutOrStdout(), cmd.ErrOrStderr())
	calc.Sleeper = newSleeper()
	if cmd.Flags().Changed("report") {
		calc.Report = report
	}

	m := metrics.NewMetrics()
	defer writeMetrics(m)

	start := time.Now()
	inv, err := calc.Run(context.Background(), args)
	m.CountInvocation(profile.Name, outcome(err))
	if err != nil {
		return err
	}
	m.ObserveSleep(profile.Name, inv.Dataset, inv.DelaySeconds(), time.Since(start).Seconds())
	return nil
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch delay.KindOf(err) {
	case delay.InvalidArgument:
		return metrics.OutcomeInvalidArgument
	case delay.UnknownDataset:
		return metrics.OutcomeUnknownDataset
	case delay.DivisionByZero:
		return metrics.OutcomeDivisionByZero
	default:
		return metrics.OutcomeFailed
	}
}

// writeMetrics flushes m to the configured textfile. Failures are logged only,
// so they never change the exit status of the measured run.
func writeMetrics(m *metrics.Metrics) {
	if settings == nil || settings.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(settings.MetricsFile); err != nil {
		telemetry.LogError("Failed to write metrics file", err, "path", settings.MetricsFile)
	}
}
