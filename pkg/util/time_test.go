package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":    0,
		"7d":  7 * 24 * time.Hour,
		"90":  90 * time.Second,
		"2h":  2 * time.Hour,
		" 1m": time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
	assert.Equal(t, time.Minute, MustParseDuration("bogus", time.Minute))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February, time.UTC))
	assert.Equal(t, 28, DaysIn(2023, time.February, time.UTC))
	assert.Equal(t, 31, DaysIn(2023, time.December, time.UTC))
	assert.Equal(t, 30, DaysIn(2023, time.April, time.UTC))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "unknown", FormatBytes(-1))
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "1.5 kB", FormatBytes(1500))

	n, err := ParseBytes("512MB")
	require.NoError(t, err)
	assert.Equal(t, uint64(512_000_000), n)
}
