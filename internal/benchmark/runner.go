package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"delaycalc/internal/delay"
	"delaycalc/internal/metrics"

	"github.com/montanaflynn/stats"
)

// Sample is the outcome of executing one invocation.
type Sample struct {
	Elapsed time.Duration
	Stdout  string
	Stderr  string
}

// Executor performs one invocation and times it.
type Executor interface {
	Execute(ctx context.Context, inv delay.Invocation) (Sample, error)
}

// InProcessExecutor sleeps inside the current process through a delay.Calculator.
type InProcessExecutor struct {
	Profile delay.Profile
	Sleeper delay.Sleeper
}

func (e *InProcessExecutor) Execute(ctx context.Context, inv delay.Invocation) (Sample, error) {
	var stdout, stderr bytes.Buffer
	calc := delay.NewCalculator(e.Profile, &stdout, &stderr)
	if e.Sleeper != nil {
		calc.Sleeper = e.Sleeper
	}

	start := time.Now()
	if err := calc.Execute(ctx, inv); err != nil {
		return Sample{}, err
	}
	return Sample{
		Elapsed: time.Since(start),
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}, nil
}

// CommandExecutor runs an external program as `<Path> [Args...] <threads> <dataset>`.
type CommandExecutor struct {
	Path string
	Args []string
}

func (e *CommandExecutor) Execute(ctx context.Context, inv delay.Invocation) (Sample, error) {
	args := append([]string{}, e.Args...)
	args = append(args, strconv.FormatInt(inv.ThreadCount, 10), inv.Dataset)
	cmd := exec.CommandContext(ctx, e.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Sample{}, fmt.Errorf("%s exited with status %d: %s", e.Path, exitErr.ExitCode(), stderr.String())
		}
		return Sample{}, fmt.Errorf("failed to run %s: %w", e.Path, err)
	}
	return Sample{Elapsed: elapsed, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Runner executes a Matrix against one profile.
type Runner struct {
	Profile  delay.Profile
	Executor Executor
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time

	// OnSample, if set, is called after every sample.
	OnSample func(key string, done, total int, elapsed time.Duration)
}

// NewRunner returns a runner that sleeps in-process.
func NewRunner(p delay.Profile) *Runner {
	return &Runner{
		Profile:  p,
		Executor: &InProcessExecutor{Profile: p},
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

// Plan validates every case of m before anything sleeps.
func (r *Runner) Plan(m Matrix) ([]delay.Invocation, error) {
	if m.Repeat < 1 {
		return nil, fmt.Errorf("repeat must be at least 1, got %d", m.Repeat)
	}
	if len(m.Threads) == 0 {
		return nil, errors.New("at least one thread count is required")
	}
	datasets := m.Datasets
	if len(datasets) == 0 {
		datasets = r.Profile.Labels()
	}

	calc := &delay.Calculator{Profile: r.Profile}
	var plan []delay.Invocation
	for _, ds := range datasets {
		for _, threads := range m.Threads {
			inv, err := calc.Plan([]string{strconv.FormatInt(threads, 10), ds})
			if err != nil {
				return nil, fmt.Errorf("case %s/%d: %w", ds, threads, err)
			}
			plan = append(plan, inv)
		}
	}
	return plan, nil
}

// Run executes every case of m Repeat times.
func (r *Runner) Run(ctx context.Context, m Matrix) (Run, error) {
	plan, err := r.Plan(m)
	if err != nil {
		return Run{}, err
	}

	now := r.Now
	if now == nil {
		now = time.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := Run{Timestamp: now(), Variant: r.Profile.Name}
	total, done := len(plan)*m.Repeat, 0
	for _, inv := range plan {
		c := Case{
			Dataset:     inv.Dataset,
			Threads:     inv.ThreadCount,
			BaseMicros:  inv.BaseMicros,
			DelayMicros: inv.DelayMicros,
		}
		for i := 0; i < m.Repeat; i++ {
			sample, err := r.Executor.Execute(ctx, inv)
			if err != nil {
				return Run{}, fmt.Errorf("case %s: %w", c.Key(), err)
			}
			if err := verifyReport(&c, sample); err != nil {
				return Run{}, fmt.Errorf("case %s: %w", c.Key(), err)
			}
			observed := sample.Elapsed.Seconds()
			c.Samples = append(c.Samples, observed)
			c.Stdout, c.Stderr = sample.Stdout, sample.Stderr
			if r.Metrics != nil {
				r.Metrics.ObserveSleep(r.Profile.Name, inv.Dataset, inv.DelaySeconds(), observed)
			}
			done++
			if r.OnSample != nil {
				r.OnSample(c.Key(), done, total, sample.Elapsed)
			}
		}

		c.Stats, err = Summarize(c.Samples)
		if err != nil {
			return Run{}, fmt.Errorf("case %s: %w", c.Key(), err)
		}
		if r.Metrics != nil {
			r.Metrics.SweepCases.Inc()
		}
		logger.Debug("case finished", "case", c.Key(), "mean", c.Stats.Mean, "expected", c.Expected())
		run.Cases = append(run.Cases, c)
	}

	return run, nil
}

// reportTolerance covers the six-decimal rounding of the printed values.
const reportTolerance = 1e-6

// verifyReport parses what a reporting program printed (delay on stdout,
// base duration on stderr, in seconds) and checks it against the plan.
// Empty streams are not checked: quiet profiles print nothing.
func verifyReport(c *Case, s Sample) error {
	check := func(stream, text string, want float64) (float64, error) {
		got, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q is not a number", stream, text)
		}
		if math.Abs(got-want) > reportTolerance {
			return 0, fmt.Errorf("%s reported %f, expected %f", stream, got, want)
		}
		return got, nil
	}

	if s.Stdout != "" {
		v, err := check("stdout", s.Stdout, c.Expected())
		if err != nil {
			return err
		}
		c.ReportedDelay = v
	}
	if s.Stderr != "" {
		v, err := check("stderr", s.Stderr, float64(c.BaseMicros)/1e6)
		if err != nil {
			return err
		}
		c.ReportedBase = v
	}
	return nil
}

// Summarize computes Stats over samples.
func Summarize(samples []float64) (Stats, error) {
	if len(samples) == 0 {
		return Stats{}, errors.New("no samples")
	}
	data := stats.Float64Data(samples)

	var s Stats
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return Stats{}, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return Stats{}, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return Stats{}, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return Stats{}, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return Stats{}, err
	}
	// nearest rank stays defined for a single sample
	if s.P95, err = stats.PercentileNearestRank(data, 95); err != nil {
		return Stats{}, err
	}
	return s, nil
}
