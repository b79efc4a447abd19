package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_SleepAdvancesAndRecords(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Sleep(5 * time.Second)
	c.Sleep(time.Hour)

	assert.Equal(t, start.Add(time.Hour+5*time.Second), c.Now())
	assert.Equal(t, []time.Duration{5 * time.Second, time.Hour}, c.Sleeps())
	assert.Equal(t, time.Hour+5*time.Second, c.Since(start))
}

func TestMockClock_OnSleepHook(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	// Simulate a laptop lid closed for three hours during a one minute sleep.
	c.OnSleep(func(d time.Duration) {
		c.Advance(3 * time.Hour)
	})
	c.Sleep(time.Minute)

	assert.Equal(t, start.Add(3*time.Hour+time.Minute), c.Now())
	assert.Equal(t, []time.Duration{time.Minute}, c.Sleeps())
}

func TestMockClock_SetBackwards(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	earlier := start.Add(-2 * time.Hour)
	c.Set(earlier)
	assert.Equal(t, earlier, c.Now())
}

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()
	before := time.Now()
	got := c.Now()
	assert.False(t, got.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}
