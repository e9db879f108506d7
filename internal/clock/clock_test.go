package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_NowIsUTCMicroseconds(t *testing.T) {
	now := New().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%1000)
}

func TestManual(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 1500, time.FixedZone("X", 3600))
	c := NewManual(start)

	assert.True(t, c.Now().Equal(start.Truncate(time.Microsecond)))
	assert.Equal(t, time.UTC, c.Now().Location())

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute).Truncate(time.Microsecond).UTC(), c.Now())

	past := start.Add(-time.Hour)
	c.Set(past)
	assert.True(t, c.Now().Before(start))
}
