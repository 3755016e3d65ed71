package delay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"
)

// Invocation is the resolved form of one command line.
type Invocation struct {
	ThreadCount int64
	Dataset     string
	BaseMicros  int64
	DelayMicros int64
}

// Delay is the per-unit delay as a time.Duration.
func (inv Invocation) Delay() time.Duration {
	return time.Duration(inv.DelayMicros) * time.Microsecond
}

// DelaySeconds is the value written to stdout by reporting profiles.
func (inv Invocation) DelaySeconds() float64 {
	return float64(inv.DelayMicros) / 1e6
}

// BaseSeconds is the value written to stderr by reporting profiles.
func (inv Invocation) BaseSeconds() float64 {
	return float64(inv.BaseMicros) / 1e6
}

// Sleeper blocks for a duration.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// SystemSleeper sleeps on the wall clock. It returns early only when ctx is done.
type SystemSleeper struct{}

func (SystemSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errNotPositive = errors.New("must be a positive integer")

// ParseThreadCount converts untrusted text into a thread count. Zero is
// accepted here and rejected by Compute so that the division failure keeps
// its own kind.
func ParseThreadCount(s string) (int64, error) {
	if s == "" {
		return 0, invalidArgument("thread_count", "", nil)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, invalidArgument("thread_count", s, err)
	}
	if n < 0 {
		return 0, invalidArgument("thread_count", s, errNotPositive)
	}
	return n, nil
}

// Compute divides base by threads, truncating.
func Compute(baseMicros, threads int64) (int64, error) {
	if threads == 0 {
		return 0, &Error{Kind: DivisionByZero, Arg: "thread_count", Value: "0"}
	}
	return baseMicros / threads, nil
}

// Calculator runs invocations against a single profile.
type Calculator struct {
	Profile Profile
	Report  bool
	Sleeper Sleeper
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// NewCalculator builds a calculator that reports according to the profile.
func NewCalculator(p Profile, stdout, stderr io.Writer) *Calculator {
	return &Calculator{
		Profile: p,
		Report:  p.Report,
		Sleeper: SystemSleeper{},
		Stdout:  stdout,
		Stderr:  stderr,
		Logger:  slog.Default(),
	}
}

// Plan validates args ([thread_count, dataset_label]) and computes the delay
// without sleeping.
func (c *Calculator) Plan(args []string) (Invocation, error) {
	var threadArg, labelArg string
	if len(args) > 0 {
		threadArg = args[0]
	}
	if len(args) > 1 {
		labelArg = args[1]
	}
	if len(args) > 2 {
		return Invocation{}, invalidArgument("arguments", fmt.Sprint(args[2:]), errors.New("expected exactly two arguments"))
	}

	threads, err := ParseThreadCount(threadArg)
	if err != nil {
		return Invocation{}, err
	}
	base, err := c.Profile.BaseMicros(labelArg)
	if err != nil {
		return Invocation{}, err
	}
	per, err := Compute(base, threads)
	if err != nil {
		return Invocation{}, err
	}

	return Invocation{
		ThreadCount: threads,
		Dataset:     labelArg,
		BaseMicros:  base,
		DelayMicros: per,
	}, nil
}

// Execute sleeps for inv's delay and reports it when enabled.
func (c *Calculator) Execute(ctx context.Context, inv Invocation) error {
	c.logger().Debug("sleeping",
		"profile", c.Profile.Name,
		"dataset", inv.Dataset,
		"threads", inv.ThreadCount,
		"base_us", inv.BaseMicros,
		"delay_us", inv.DelayMicros,
	)

	if err := c.sleeper().Sleep(ctx, inv.Delay()); err != nil {
		return fmt.Errorf("sleep interrupted: %w", err)
	}

	if !c.Report {
		return nil
	}
	if c.Stdout != nil {
		if _, err := fmt.Fprintf(c.Stdout, "%f", inv.DelaySeconds()); err != nil {
			return fmt.Errorf("failed to write delay: %w", err)
		}
	}
	if c.Stderr != nil {
		if _, err := fmt.Fprintf(c.Stderr, "%f", inv.BaseSeconds()); err != nil {
			return fmt.Errorf("failed to write base duration: %w", err)
		}
	}
	return nil
}

// Run plans and executes one invocation.
func (c *Calculator) Run(ctx context.Context, args []string) (Invocation, error) {
	inv, err := c.Plan(args)
	if err != nil {
		c.logger().Debug("invocation rejected", "args", args, "error", err)
		return Invocation{}, err
	}
	return inv, c.Execute(ctx, inv)
}

func (c *Calculator) sleeper() Sleeper {
	if c.Sleeper == nil {
		return SystemSleeper{}
	}
	return c.Sleeper
}

func (c *Calculator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
