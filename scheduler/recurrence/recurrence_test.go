package recurrence

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Bounding(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	hz := DefaultHorizons()

	t.Run("declared count stays concrete", func(t *testing.T) {
		def, err := Build(Ruleset{Rule: &Rule{Freq: Daily, Count: 5}}, start, hz)
		require.NoError(t, err)
		assert.Equal(t, 5, def.Count)
		assert.True(t, def.Until.IsZero())
		assert.Contains(t, def.Rule, "COUNT=5")
		assert.True(t, def.Bounded())
	})

	t.Run("count past the horizon is clipped", func(t *testing.T) {
		def, err := Build(Ruleset{Rule: &Rule{Freq: Daily, Count: 100000}}, start, hz)
		require.NoError(t, err)
		assert.LessOrEqual(t, def.Count, hz.MaxDays+1)
		assert.Positive(t, def.Count)
	})

	t.Run("open-ended rule gets a concrete until", func(t *testing.T) {
		for _, freq := range []Frequency{Daily, Weekly, Monthly, Yearly, Hourly} {
			def, err := Build(Ruleset{Rule: &Rule{Freq: freq}}, start, hz)
			require.NoError(t, err, freq.String())
			assert.False(t, def.Until.IsZero(), freq.String())
			assert.Contains(t, def.Rule, "UNTIL=", freq.String())
			assert.True(t, def.Bounded(), freq.String())
		}
	})

	t.Run("per-frequency horizons", func(t *testing.T) {
		tests := []struct {
			freq Frequency
			want time.Time
		}{
			{Daily, start.AddDate(0, 0, 730)},
			{Weekly, start.AddDate(0, 0, 7*520)},
			{Monthly, start.AddDate(0, 360, 0)},
			{Yearly, start.AddDate(100, 0, 0)},
			{Hourly, start.AddDate(1, 0, 0)},
		}
		for _, tt := range tests {
			def, err := Build(Ruleset{Rule: &Rule{Freq: tt.freq}}, start, hz)
			require.NoError(t, err, tt.freq.String())
			assert.Equal(t, tt.want.UTC(), def.Until, tt.freq.String())
		}
	})

	t.Run("declared until is kept", func(t *testing.T) {
		until := start.AddDate(0, 1, 0)
		def, err := Build(Ruleset{Rule: &Rule{Freq: Daily, Until: &until}}, start, hz)
		require.NoError(t, err)
		assert.Equal(t, until.UTC(), def.Until)
	})
}

func TestBuild_CanonicalRule(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	wkst := time.Monday

	def, err := Build(Ruleset{Rule: &Rule{
		Freq:      Weekly,
		Interval:  2,
		Count:     10,
		ByDay:     []Weekday{{Day: time.Monday}, {Day: time.Wednesday}},
		WeekStart: &wkst,
	}}, start, DefaultHorizons())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(def.Rule, "FREQ=WEEKLY"), def.Rule)
	assert.Contains(t, def.Rule, "INTERVAL=2")
	assert.Contains(t, def.Rule, "BYDAY=MO,WE")

	// The canonical rule is a bare expression, suitable as an RRULE
	// property value as-is.
	assert.NotContains(t, def.Rule, "\n")
	assert.NotContains(t, def.Rule, "RRULE:")
	assert.NotContains(t, def.Rule, "DTSTART")
}

func TestBuild_ExplicitDates(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	rdate := start.AddDate(0, 0, 3)
	exdate := start.AddDate(0, 0, 5)

	def, err := Build(Ruleset{
		AddDates:     []time.Time{rdate},
		ExcludeDates: []time.Time{exdate},
	}, start, DefaultHorizons())
	require.NoError(t, err)
	assert.Empty(t, def.Rule)
	assert.Equal(t, []time.Time{rdate}, def.RDates)
	assert.Equal(t, []time.Time{exdate}, def.ExDates)
	assert.True(t, def.Bounded())
}

func TestBuild_Invalid(t *testing.T) {
	hz := DefaultHorizons()
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	t.Run("no start", func(t *testing.T) {
		_, err := Build(Ruleset{Rule: &Rule{Freq: Daily}}, time.Time{}, hz)
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("negative count", func(t *testing.T) {
		_, err := Build(Ruleset{Rule: &Rule{Freq: Daily, Count: -1}}, start, hz)
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("negative interval", func(t *testing.T) {
		_, err := Build(Ruleset{Rule: &Rule{Freq: Daily, Interval: -2}}, start, hz)
		assert.ErrorIs(t, err, ErrInvalidRule)
	})
}

func TestDefinition_AddExDate(t *testing.T) {
	def := &Definition{}
	at := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	def.AddExDate(at)
	def.AddExDate(at)
	assert.Equal(t, []time.Time{at}, def.ExDates)
}
