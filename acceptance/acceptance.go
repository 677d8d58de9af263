// Package acceptance provides declarative pass/fail checks applied to an
// agent's final result before a run is allowed to finish. Criteria are
// registered on a Checker and evaluated in registration order; a run is
// accepted only when every criterion passes.
package acceptance

import (
	"fmt"
	"strings"

	"agentrun/core"
)

// Result describes the outcome of a single criterion evaluation.
type Result struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Context carries everything a criterion may inspect: the final result
// string the agent produced and the full event history of the run.
type Context struct {
	RunID  string
	Result string
	Events []core.Event
}

// Criterion is a single named acceptance check.
type Criterion interface {
	// Name returns a stable identifier used in results and feedback.
	Name() string

	// Check evaluates the criterion against the run context.
	Check(ctx Context) Result
}

// CriterionFunc adapts a plain function to the Criterion interface.
type CriterionFunc struct {
	name string
	fn   func(ctx Context) Result
}

// NewCriterionFunc creates a Criterion from a function.
func NewCriterionFunc(name string, fn func(ctx Context) Result) *CriterionFunc {
	return &CriterionFunc{name: name, fn: fn}
}

// Name implements Criterion.
func (c *CriterionFunc) Name() string { return c.name }

// Check implements Criterion.
func (c *CriterionFunc) Check(ctx Context) Result { return c.fn(ctx) }

// Checker evaluates an ordered list of criteria. A Checker with no
// criteria accepts everything.
type Checker struct {
	criteria []Criterion
}

// NewChecker creates a Checker with the given criteria.
func NewChecker(criteria ...Criterion) *Checker {
	return &Checker{criteria: criteria}
}

// Register appends a criterion. Evaluation order is registration order.
func (c *Checker) Register(criterion Criterion) {
	c.criteria = append(c.criteria, criterion)
}

// Len returns the number of registered criteria.
func (c *Checker) Len() int { return len(c.criteria) }

// CheckAll evaluates every criterion against the context. It returns true
// only when all criteria pass, together with the individual results in
// registration order. With no criteria registered it returns (true, nil).
func (c *Checker) CheckAll(ctx Context) (bool, []Result) {
	if len(c.criteria) == 0 {
		return true, nil
	}
	results := make([]Result, 0, len(c.criteria))
	passed := true
	for _, criterion := range c.criteria {
		res := criterion.Check(ctx)
		res.Name = criterion.Name()
		if !res.Passed {
			passed = false
		}
		results = append(results, res)
	}
	return passed, results
}

// FeedbackMessage renders failed results as an observation the agent can
// act on in its next step.
func FeedbackMessage(results []Result) string {
	var b strings.Builder
	b.WriteString("[ACCEPTANCE FAILED] The result did not meet the following criteria:\n")
	for _, r := range results {
		if r.Passed {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Name, r.Message)
	}
	b.WriteString("Revise your work and finish again when the criteria are met.")
	return b.String()
}

// NonEmptyResult passes when the final result contains non-whitespace text.
func NonEmptyResult() Criterion {
	return NewCriterionFunc("non_empty_result", func(ctx Context) Result {
		if strings.TrimSpace(ctx.Result) == "" {
			return Result{Passed: false, Message: "final result is empty"}
		}
		return Result{Passed: true}
	})
}

// MinLength passes when the final result is at least n characters long.
func MinLength(n int) Criterion {
	return NewCriterionFunc("min_length", func(ctx Context) Result {
		if len(ctx.Result) < n {
			return Result{
				Passed:  false,
				Message: fmt.Sprintf("final result has %d characters, need at least %d", len(ctx.Result), n),
			}
		}
		return Result{Passed: true}
	})
}

// Contains passes when the final result contains the given substring.
func Contains(substr string) Criterion {
	return NewCriterionFunc("contains", func(ctx Context) Result {
		if !strings.Contains(ctx.Result, substr) {
			return Result{
				Passed:  false,
				Message: fmt.Sprintf("final result does not contain %q", substr),
			}
		}
		return Result{Passed: true}
	})
}
