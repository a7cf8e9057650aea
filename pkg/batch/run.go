package batch

import (
	"context"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
)

// Outcome is the result of one batch entry.
type Outcome struct {
	Entry
	Result string `json:"result"`
	Passed bool   `json:"passed"` // true when there is no expectation or it matched
}

// Report is the result of running a batch.
type Report struct {
	Outcomes []Outcome
	Failed   int // entries whose expectation did not match
}

// Run evaluates entries in order. It stops early when ctx is done and returns
// the outcomes collected so far together with ctx.Err().
func Run(ctx context.Context, engine calc.Engine, entries []Entry) (*Report, error) {
	report := &Report{Outcomes: make([]Outcome, 0, len(entries))}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := engine.Evaluate(e.Expression)
		passed := !e.HasExpect || result == e.Expect
		if !passed {
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, Outcome{Entry: e, Result: result, Passed: passed})
	}
	return report, nil
}
