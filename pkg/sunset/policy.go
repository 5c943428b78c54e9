package sunset

import (
	"fmt"
	"time"
)

// Policy holds the schedule constants the evaluator applies to every legacy
// endpoint. The defaults are the compiled-in policy; hosts that externalize
// them must validate before use — an invalid policy fails closed (every
// evaluation behaves as if the endpoint were not deprecated).
type Policy struct {
	// SunsetHourUTC is the time-of-day, in UTC, at which the sunset date
	// becomes the sunset instant. 14:00 UTC = 10am EST = 7am PST.
	SunsetHourUTC int

	// FinalWarnWindow is how long before the sunset instant every caller
	// is hard-rejected.
	FinalWarnWindow time.Duration

	// GraceWindow is how long after the sunset instant the endpoint keeps
	// returning an explanatory rejection before going fully not-found.
	GraceWindow time.Duration

	// BackfillMonths is the sunset window assigned to an endpoint that was
	// marked deprecated without a sunset date.
	BackfillMonths int

	// MonthlyErrorAllowance caps how many early-warn rejections one
	// anonymous identity receives per endpoint per UTC calendar month.
	MonthlyErrorAllowance int
}

// DefaultPolicy returns the compiled-in schedule constants.
func DefaultPolicy() Policy {
	return Policy{
		SunsetHourUTC:         14,
		FinalWarnWindow:       14 * 24 * time.Hour,
		GraceWindow:           31 * 24 * time.Hour,
		BackfillMonths:        36,
		MonthlyErrorAllowance: 5,
	}
}

// Validate reports whether the policy is usable on the request path.
func (p Policy) Validate() error {
	if p.SunsetHourUTC < 0 || p.SunsetHourUTC > 23 {
		return fmt.Errorf("%w: sunset hour %d outside 0-23", ErrInvalidPolicy, p.SunsetHourUTC)
	}
	if p.FinalWarnWindow <= 0 {
		return fmt.Errorf("%w: final warn window %v not positive", ErrInvalidPolicy, p.FinalWarnWindow)
	}
	if p.GraceWindow <= 0 {
		return fmt.Errorf("%w: grace window %v not positive", ErrInvalidPolicy, p.GraceWindow)
	}
	if p.BackfillMonths <= 0 {
		return fmt.Errorf("%w: backfill months %d not positive", ErrInvalidPolicy, p.BackfillMonths)
	}
	if p.MonthlyErrorAllowance < 0 {
		return fmt.Errorf("%w: monthly error allowance %d negative", ErrInvalidPolicy, p.MonthlyErrorAllowance)
	}
	return nil
}
