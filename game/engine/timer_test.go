package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerFiresInDueOrder(t *testing.T) {
	s := NewScheduler()
	var fired []string
	s.After(0.3, func() { fired = append(fired, "c") })
	s.After(0.1, func() { fired = append(fired, "a") })
	s.After(0.2, func() { fired = append(fired, "b") })

	assert.Equal(t, 0, s.Advance(0.05))
	assert.Empty(t, fired)

	assert.Equal(t, 3, s.Advance(0.5))
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSchedulerFiresOnce(t *testing.T) {
	s := NewScheduler()
	count := 0
	timer := s.After(0.1, func() { count++ })
	s.Advance(0.2)
	s.Advance(0.2)
	assert.Equal(t, 1, count)
	assert.False(t, timer.Pending())
}

func TestTimerCancel(t *testing.T) {
	s := NewScheduler()
	fired := false
	timer := s.After(0.1, func() { fired = true })
	assert.True(t, timer.Pending())

	timer.Cancel()
	timer.Cancel()
	s.Advance(1)
	assert.False(t, fired)
	assert.False(t, timer.Pending())

	var nilTimer *Timer
	nilTimer.Cancel()
	assert.False(t, nilTimer.Pending())
}

func TestSchedulerCancelAll(t *testing.T) {
	s := NewScheduler()
	fired := 0
	s.After(0.1, func() { fired++ })
	s.After(0.2, func() { fired++ })
	s.CancelAll()
	s.Advance(1)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSchedulerTimerScheduledFromCallback(t *testing.T) {
	s := NewScheduler()
	var fired []string
	s.After(0.1, func() {
		fired = append(fired, "first")
		s.After(0, func() { fired = append(fired, "immediate") })
		s.After(1, func() { fired = append(fired, "later") })
	})

	s.Advance(0.2)
	assert.Equal(t, []string{"first", "immediate"}, fired)
	assert.Equal(t, 1, s.PendingCount())

	s.Advance(1)
	assert.Equal(t, []string{"first", "immediate", "later"}, fired)
}

func TestSchedulerNegativeDelay(t *testing.T) {
	s := NewScheduler()
	fired := false
	s.After(-5, func() { fired = true })
	s.Advance(0)
	assert.True(t, fired)
	assert.Equal(t, 0.0, s.Now())
}
