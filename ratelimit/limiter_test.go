package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstSendIsAllowed(t *testing.T) {
	req := require.New(t)
	l := NewLimiter()

	decision := l.TryAcquire(time.Now(), DefaultCooldown)

	req.True(decision.Allowed)
	req.Zero(decision.RetryAfter)
	_, sent := l.LastSentAt()
	req.False(sent)
}

func TestLimiter_CooldownBoundary(t *testing.T) {
	req := require.New(t)
	l := NewLimiter()
	t0 := time.UnixMilli(1_000_000)

	// Given a send recorded at t0
	l.Record(t0)

	// When asking 1ms before the window closes
	decision := l.TryAcquire(t0.Add(1999*time.Millisecond), 2000*time.Millisecond)
	// Then it is refused with the remaining wait
	req.False(decision.Allowed)
	req.Equal(time.Millisecond, decision.RetryAfter)

	// When the window has exactly elapsed
	decision = l.TryAcquire(t0.Add(2000*time.Millisecond), 2000*time.Millisecond)
	req.True(decision.Allowed)
}

func TestLimiter_RejectionDoesNotMoveTheWindow(t *testing.T) {
	req := require.New(t)
	l := NewLimiter()
	t0 := time.UnixMilli(0)
	l.Record(t0)

	for i := 0; i < 5; i++ {
		req.False(l.TryAcquire(t0.Add(time.Second), DefaultCooldown).Allowed)
	}
	req.True(l.TryAcquire(t0.Add(DefaultCooldown), DefaultCooldown).Allowed)
}

func TestLimiter_ConcurrentUse(t *testing.T) {
	req := require.New(t)
	l := NewLimiter()
	t0 := time.UnixMilli(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := t0.Add(time.Duration(i) * time.Millisecond)
			if l.TryAcquire(now, DefaultCooldown).Allowed {
				l.Record(now)
			}
		}(i)
	}
	wg.Wait()

	_, sent := l.LastSentAt()
	req.True(sent)
}
