package clock_test

import (
	"testing"
	"time"

	"github.com/benmeehan/signage-agent/pkg/clock"
	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AdvanceFiresDueTimers(t *testing.T) {
	c := clock.Fake(epoch)

	short := c.NewTimer(5 * time.Second)
	long := c.NewTimer(30 * time.Second)
	assert.Equal(t, 2, c.PendingWaiters())

	c.Advance(10 * time.Second)

	select {
	case fired := <-short.C:
		assert.Equal(t, epoch.Add(10*time.Second), fired)
	default:
		t.Fatal("short timer did not fire")
	}

	select {
	case <-long.C:
		t.Fatal("long timer fired early")
	default:
	}
	assert.Equal(t, 1, c.PendingWaiters())
}

func TestFakeClock_StoppedTimerNeverFires(t *testing.T) {
	c := clock.Fake(epoch)

	timer := c.NewTimer(time.Second)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
	assert.Equal(t, 0, c.PendingWaiters())
}

func TestFakeClock_WaitForWaiters(t *testing.T) {
	c := clock.Fake(epoch)

	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForWaiters(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter goroutine did not wake")
	}
}

func TestFakeClock_NonPositiveDurationFiresImmediately(t *testing.T) {
	c := clock.Fake(epoch)
	select {
	case now := <-c.After(0):
		assert.Equal(t, epoch, now)
	default:
		t.Fatal("zero-duration timer should fire immediately")
	}
}
