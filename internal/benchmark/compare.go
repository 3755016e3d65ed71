package benchmark

import "fmt"

// Verdicts assigned by Comparison.Status.
const (
	StatusPass     = "PASS"
	StatusFail     = "FAIL"
	StatusImproved = "IMPR"
)

type Comparison struct {
	Key         string
	MeanDiff    float64 // Percentage change
	OverheadAbs float64 // Seconds, current minus previous overhead
	Prev        Case
	Curr        Case
}

// Compare runs comparison between two runs.
// It returns a list of comparisons for cases present in both runs.
func Compare(prev, curr Run) []Comparison {
	prevMap := make(map[string]Case)
	for _, c := range prev.Cases {
		prevMap[c.Key()] = c
	}

	var comparisons []Comparison
	for _, c := range curr.Cases {
		p, ok := prevMap[c.Key()]
		if !ok {
			continue
		}
		comp := Comparison{
			Key:         c.Key(),
			OverheadAbs: c.Overhead() - p.Overhead(),
			Prev:        p,
			Curr:        c,
		}
		if p.Stats.Mean > 0 {
			comp.MeanDiff = ((c.Stats.Mean - p.Stats.Mean) / p.Stats.Mean) * 100
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

// Status classifies the change against a percentage threshold.
func (c Comparison) Status(threshold float64) string {
	switch {
	case c.MeanDiff > threshold:
		return StatusFail
	case c.MeanDiff < -threshold:
		return StatusImproved
	default:
		return StatusPass
	}
}

// Regressions counts comparisons slower than threshold.
func Regressions(comps []Comparison, threshold float64) int {
	n := 0
	for _, c := range comps {
		if c.Status(threshold) == StatusFail {
			n++
		}
	}
	return n
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: %+.2f%% mean", c.Key, c.MeanDiff)
}
