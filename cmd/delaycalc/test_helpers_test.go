package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"delaycalc/internal/delay"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// fakeSleeper records requested delays instead of waiting for them.
type fakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	real  bool // actually sleep a little, for tests that need measurable samples
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, d)
	f.mu.Unlock()
	if f.real {
		time.Sleep(2 * time.Millisecond)
	}
	return nil
}

func (f *fakeSleeper) Calls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.calls...)
}

// setupCLI isolates a test from the working directory, env, viper state and
// the real clock. It returns the sleeper every command will use.
func setupCLI(t *testing.T) *fakeSleeper {
	t.Helper()
	t.Chdir(t.TempDir())

	oldLogger := slog.Default()
	oldSleeper := newSleeper
	oldStore := newStoreFunc
	sleeper := &fakeSleeper{}
	newSleeper = func() delay.Sleeper { return sleeper }

	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
		newSleeper = oldSleeper
		newStoreFunc = oldStore
		viper.Reset()
		settings = nil
	})
	return sleeper
}

// executeCommand executes the root command and returns stdout and stderr separately.
func executeCommand(root *cobra.Command, args ...string) (string, string, error) {
	viper.Reset()
	resetFlags(root)
	freshSweepCmd(root)
	settings = nil

	root.SetArgs(args)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	root.SetIn(bytes.NewBufferString(""))
	err := root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// executeMain runs Execute() the way main does and returns the exit status.
func executeMain(root *cobra.Command, args ...string) (int, string, string) {
	viper.Reset()
	resetFlags(root)
	freshSweepCmd(root)
	settings = nil

	code := 0
	oldExit := exit
	exit = func(c int) { code = c }
	defer func() { exit = oldExit }()

	root.SetArgs(args)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	Execute()
	return code, outBuf.String(), errBuf.String()
}

// resetFlags resets all flags to their default values.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		if c.Name() == "sweep" {
			continue
		}
		resetFlags(c)
	}
}

// freshSweepCmd replaces the sweep command, whose slice flags cannot be reset in place.
func freshSweepCmd(root *cobra.Command) {
	for _, c := range root.Commands() {
		if c.Name() == "sweep" {
			root.RemoveCommand(c)
		}
	}
	root.AddCommand(newSweepCmd())
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
