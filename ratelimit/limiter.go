// Package ratelimit gates outbound sends of one local session.
package ratelimit

import (
	"sync"
	"time"
)

const DefaultCooldown = 2 * time.Second

// Decision is the outcome of TryAcquire. RetryAfter is zero when Allowed.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter allows one send per cooldown window.
// It never queues: a rejected send is simply not made.
type Limiter struct {
	mu         sync.Mutex
	lastSentAt time.Time
	hasSent    bool
}

func NewLimiter() *Limiter {
	return &Limiter{}
}

func (l *Limiter) TryAcquire(now time.Time, cooldown time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasSent {
		return Decision{Allowed: true}
	}
	elapsed := now.Sub(l.lastSentAt)
	if elapsed >= cooldown {
		return Decision{Allowed: true}
	}
	return Decision{RetryAfter: cooldown - elapsed}
}

// Record must be called once the send went through.
func (l *Limiter) Record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSentAt = now
	l.hasSent = true
}

// LastSentAt returns the last recorded send, if any.
func (l *Limiter) LastSentAt() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSentAt, l.hasSent
}
