package sunset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/endpoint-sunset/pkg/sunset"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestSunsetInstant(t *testing.T) {
	policy := sunset.DefaultPolicy()

	instant := policy.SunsetInstant(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC), instant)

	// Time-of-day on the stored date is irrelevant; only the calendar date
	// feeds the instant.
	instant = policy.SunsetInstant(time.Date(2024, 7, 1, 23, 45, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC), instant)
}

func TestClassify(t *testing.T) {
	policy := sunset.DefaultPolicy()
	deprecatedOn := datePtr(2024, 1, 1)
	sunsetInstant := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want sunset.Phase
	}{
		{
			name: "before the deprecation date",
			now:  time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			want: sunset.PhasePending,
		},
		{
			name: "midnight of the deprecation date",
			now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			want: sunset.PhaseEarlyWarn,
		},
		{
			name: "well before the final warning window",
			now:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			want: sunset.PhaseEarlyWarn,
		},
		{
			name: "one second before the final warning window",
			now:  time.Date(2024, 6, 17, 13, 59, 59, 0, time.UTC),
			want: sunset.PhaseEarlyWarn,
		},
		{
			name: "exactly fourteen days before the sunset instant",
			now:  time.Date(2024, 6, 17, 14, 0, 0, 0, time.UTC),
			want: sunset.PhaseFinalWarn,
		},
		{
			name: "inside the final warning window",
			now:  time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
			want: sunset.PhaseFinalWarn,
		},
		{
			name: "one second before the sunset instant",
			now:  time.Date(2024, 7, 1, 13, 59, 59, 0, time.UTC),
			want: sunset.PhaseFinalWarn,
		},
		{
			name: "exactly the sunset instant",
			now:  time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC),
			want: sunset.PhasePostSunsetGrace,
		},
		{
			name: "inside the grace window",
			now:  time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
			want: sunset.PhasePostSunsetGrace,
		},
		{
			name: "one second before retirement",
			now:  time.Date(2024, 8, 1, 13, 59, 59, 0, time.UTC),
			want: sunset.PhasePostSunsetGrace,
		},
		{
			name: "exactly thirty-one days past the sunset instant",
			now:  time.Date(2024, 8, 1, 14, 0, 0, 0, time.UTC),
			want: sunset.PhaseRetired,
		},
		{
			name: "long after retirement",
			now:  time.Date(2024, 8, 5, 0, 0, 0, 0, time.UTC),
			want: sunset.PhaseRetired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Classify(tt.now, deprecatedOn, sunsetInstant)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyNotDeprecated(t *testing.T) {
	policy := sunset.DefaultPolicy()

	got := policy.Classify(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil, time.Time{})
	assert.Equal(t, sunset.PhaseNotDeprecated, got)
}

func TestClassifyMonotonic(t *testing.T) {
	policy := sunset.DefaultPolicy()
	deprecatedOn := datePtr(2024, 1, 1)
	sunsetInstant := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)

	// Walk the clock forward in one-hour steps across the whole schedule;
	// the phase must never move backwards.
	now := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	previous := policy.Classify(now, deprecatedOn, sunsetInstant)
	for now.Before(end) {
		now = now.Add(time.Hour)
		current := policy.Classify(now, deprecatedOn, sunsetInstant)
		assert.GreaterOrEqual(t, int(current), int(previous), "phase regressed at %v", now)
		previous = current
	}
}
