// Package validation cross-checks the numbers on an extracted receipt and
// scores how far the extraction can be trusted.
//
// Checks are independent functions run in a fixed order. A check whose
// inputs are missing is skipped, so validation never fails; it only reports
// issues of graded severity.
package validation

import (
	"math"
	"time"

	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/money"
)

// Validator runs the consistency checks. It is immutable and safe for concurrent use.
type Validator struct {
	cfg Config
	now func() time.Time
}

// New creates a Validator that uses the wall clock
func New(cfg Config) *Validator {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a Validator with a custom clock for testing
func NewWithClock(cfg Config, now func() time.Time) *Validator {
	return &Validator{cfg: cfg, now: now}
}

// Config returns the thresholds the validator was built with.
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate runs every check against r and scores the result.
func (v *Validator) Validate(r model.Receipt) Result {
	in := input{receipt: r, cfg: v.cfg, now: v.now()}

	issues := make([]Issue, 0)
	for _, rl := range rules {
		issues = append(issues, rl.check(in)...)
	}

	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			valid = false
			break
		}
	}

	return Result{
		Valid:           valid,
		Issues:          issues,
		ConfidenceScore: confidence(issues),
	}
}

// Validate checks r with the default thresholds.
func Validate(r model.Receipt) Result {
	return New(DefaultConfig()).Validate(r)
}

// RuleInfo describes one check for listings
type RuleInfo struct {
	Name  string      `json:"name"`
	Emits []IssueType `json:"emits"`
}

// Catalog lists the checks in execution order.
func Catalog() []RuleInfo {
	out := make([]RuleInfo, len(rules))
	for i, rl := range rules {
		out[i] = RuleInfo{Name: rl.name, Emits: append([]IssueType(nil), rl.emits...)}
	}
	return out
}

// weight is how much one issue of the given severity lowers the confidence score.
func weight(s Severity) float64 {
	switch s {
	case SeverityFatal:
		return 0.6
	case SeverityError:
		return 0.3
	case SeverityWarning:
		return 0.1
	case SeverityInfo:
		return 0.03
	}
	return 0
}

// issueWeight scales numerical issues by the relative size of the mismatch:
// a 1% mismatch costs a tenth of the base weight, 10% or more the full weight.
func issueWeight(issue Issue) float64 {
	w := weight(issue.Severity)
	if !issue.Type.numerical() || issue.Comparison == nil {
		return w
	}

	a, b := math.Abs(issue.Comparison.Stated), math.Abs(issue.Comparison.Expected)
	hi := math.Max(a, b)
	if hi == 0 {
		return w
	}
	pct := math.Abs(a-b) / hi * 100
	return w * math.Min(1, pct/10)
}

func confidence(issues []Issue) float64 {
	var reduction float64
	for _, issue := range issues {
		reduction += issueWeight(issue)
	}
	return money.Round2(math.Max(0, 1-reduction))
}
