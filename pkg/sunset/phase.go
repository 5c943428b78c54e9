package sunset

import "time"

// SunsetInstant combines a sunset date with the policy's fixed time-of-day
// to get the exact cutover moment shared by all callers. Phase comparisons
// use this instant rather than the bare date so "the day of sunset" has a
// single unambiguous boundary regardless of the caller's time zone.
func (p Policy) SunsetInstant(sunsetsOn time.Time) time.Time {
	y, m, d := sunsetsOn.Date()
	return time.Date(y, m, d, p.SunsetHourUTC, 0, 0, 0, time.UTC)
}

// Classify maps the clock and an endpoint's schedule to a phase. It is pure:
// no side effects, identical results for identical inputs, and deliberately
// no persisted phase anywhere — the phase is a derived view of time.
//
// deprecatedOn carries date precision; its comparison against now is by
// calendar date in UTC. Every other boundary compares against the sunset
// instant. sunsetInstant is ignored when deprecatedOn is nil.
func (p Policy) Classify(now time.Time, deprecatedOn *time.Time, sunsetInstant time.Time) Phase {
	if deprecatedOn == nil {
		return PhaseNotDeprecated
	}

	if dateBefore(now.UTC(), *deprecatedOn) {
		return PhasePending
	}

	switch {
	case !now.Before(sunsetInstant.Add(p.GraceWindow)):
		return PhaseRetired
	case !now.Before(sunsetInstant):
		return PhasePostSunsetGrace
	case !now.Before(sunsetInstant.Add(-p.FinalWarnWindow)):
		return PhaseFinalWarn
	default:
		return PhaseEarlyWarn
	}
}

// dateBefore reports whether a's calendar date is strictly before b's.
func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// monthStartUTC truncates an instant to the start of its UTC calendar month,
// the window over which the anonymous abuse allowance is counted.
func monthStartUTC(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
