package benchmark

import (
	"fmt"
	"time"
)

// Matrix describes which cases a sweep runs.
type Matrix struct {
	Threads  []int64
	Datasets []string // empty means every dataset of the profile
	Repeat   int
}

// Stats summarises the samples of one case, in seconds.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
}

// Case is one (dataset, threads) cell of a sweep.
type Case struct {
	Dataset     string    `json:"dataset"`
	Threads     int64     `json:"threads"`
	BaseMicros  int64     `json:"base_us"`
	DelayMicros int64     `json:"delay_us"`
	Samples     []float64 `json:"samples"`
	Stats       Stats     `json:"stats"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`

	// Values parsed from the last sample's output, in seconds
	ReportedDelay float64 `json:"reported_delay_s,omitempty"`
	ReportedBase  float64 `json:"reported_base_s,omitempty"`
}

// Key identifies a case across runs.
func (c Case) Key() string {
	return fmt.Sprintf("%s/%d", c.Dataset, c.Threads)
}

// Expected is the planned delay in seconds.
func (c Case) Expected() float64 {
	return float64(c.DelayMicros) / 1e6
}

// Overhead is how much longer than planned the mean sample took.
func (c Case) Overhead() float64 {
	return c.Stats.Mean - c.Expected()
}

// Run represents every case of a single sweep.
type Run struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Variant   string    `json:"variant"`
	Commit    string    `json:"commit,omitempty"` // Git commit hash
	Cases     []Case    `json:"cases"`
}
