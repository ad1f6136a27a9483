package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerRunsLastTriggerOnly(t *testing.T) {
	clock := &manualClock{}
	d := NewDebouncer(TextDelay, clock.AfterFunc)

	var ran []string
	d.Trigger(func() { ran = append(ran, "b") })
	clock.Advance(400 * time.Millisecond)
	d.Trigger(func() { ran = append(ran, "bu") })
	clock.Advance(400 * time.Millisecond)
	assert.Empty(t, ran)
	assert.True(t, d.Pending())

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"bu"}, ran)
	assert.False(t, d.Pending())
}

func TestDebouncerFlushAndStop(t *testing.T) {
	clock := &manualClock{}
	d := NewDebouncer(0, clock.AfterFunc)
	assert.Equal(t, DefaultDelay, d.Delay())

	calls := 0
	d.Trigger(func() { calls++ })
	assert.True(t, d.Flush())
	assert.False(t, d.Flush())
	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)

	d.Trigger(func() { calls++ })
	d.Stop()
	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)
}
