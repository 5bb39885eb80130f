package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixedInterval(t *testing.T) {
	spec, err := Parse("90s", "")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, spec.Interval())
	assert.Equal(t, "90s", spec.String())

	ref := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	next, err := spec.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Add(90*time.Second), next)
}

func TestParseFixedIntervalDeterministic(t *testing.T) {
	spec, err := Parse("15m", "UTC")
	require.NoError(t, err)

	ref := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	first, err := spec.Next(ref)
	require.NoError(t, err)
	second, err := spec.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseCron(t *testing.T) {
	spec, err := Parse("*/5 * * * *", "")
	require.NoError(t, err)
	assert.Zero(t, spec.Interval())

	ref := time.Date(2025, 3, 10, 12, 2, 30, 0, time.UTC)
	next, err := spec.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC), next)
	assert.True(t, next.After(ref))
}

func TestParseCronDescriptor(t *testing.T) {
	spec, err := Parse("@hourly", "")
	require.NoError(t, err)

	ref := time.Date(2025, 3, 10, 12, 15, 0, 0, time.UTC)
	next, err := spec.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC), next)
}

func TestParseCronTimezone(t *testing.T) {
	// 09:00 in New York is 13:00 or 14:00 UTC depending on DST.
	spec, err := Parse("0 9 * * *", "America/New_York")
	require.NoError(t, err)

	// January: EST, UTC-5.
	ref := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	next, err := spec.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC), next)

	// July: EDT, UTC-4.
	ref = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	next, err = spec.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 15, 13, 0, 0, 0, time.UTC), next)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name     string
		expr     string
		timezone string
	}{
		{"empty", "", ""},
		{"garbage", "not a schedule", ""},
		{"too many fields", "* * * * * *", ""},
		{"sub-second interval", "500ms", ""},
		{"unknown timezone", "0 9 * * *", "Mars/Olympus"},
		{"never fires", "0 0 31 2 *", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr, tc.timezone)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestNextReturnsUTC(t *testing.T) {
	spec, err := Parse("0 9 * * *", "America/New_York")
	require.NoError(t, err)

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	next, err := spec.Next(time.Date(2025, 1, 15, 9, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, next.Location())
}
