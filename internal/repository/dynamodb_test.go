package repository

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampFormatOrdersSubsecondTies(t *testing.T) {
	whole := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	half := whole.Add(500 * time.Millisecond)

	a := whole.Format(timestampFormat)
	b := half.Format(timestampFormat)
	assert.True(t, a < b, "%q should sort before %q", a, b)

	// RFC3339Nano drops trailing zeros, so the whole second renders shorter
	// and sorts after the fractional one.
	assert.False(t, whole.Format(time.RFC3339Nano) < half.Format(time.RFC3339Nano))
}

func TestTimestampFormatIsFixedWidth(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 1, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 999999999, time.UTC),
		time.Date(2025, 12, 31, 23, 59, 59, 500000000, time.UTC),
	}

	width := len(times[0].Format(timestampFormat))
	for _, at := range times {
		assert.Len(t, at.Format(timestampFormat), width)
	}
}

func TestTimestampFormatRoundTripsAndSortsChronologically(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(750 * time.Millisecond),
		base,
		base.Add(time.Second),
		base.Add(500 * time.Millisecond),
	}

	keys := make([]string, len(times))
	for i, at := range times {
		keys[i] = at.Format(timestampFormat)
	}
	sort.Strings(keys)

	for i := 1; i < len(keys); i++ {
		prev, err := time.Parse(time.RFC3339Nano, keys[i-1])
		require.NoError(t, err)
		next, err := time.Parse(time.RFC3339Nano, keys[i])
		require.NoError(t, err)
		assert.True(t, prev.Before(next))
	}
}
