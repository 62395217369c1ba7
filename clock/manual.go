package clock

import (
	"ai-live-chat/contract"
	"sort"
	"sync"
	"time"
)

// Manual is a controllable clock. Time only moves on Advance or Set, and
// due callbacks run synchronously on the calling goroutine in time order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*manualTimer
}

type manualTimer struct {
	id     uint64
	at     time.Time
	period time.Duration
	fn     func()
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[uint64]*manualTimer)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) contract.Handle {
	return m.schedule(d, 0, fn)
}

func (m *Manual) Every(period time.Duration, fn func()) contract.Handle {
	return m.schedule(period, period, fn)
}

// Pending is the number of live timers, used to assert nothing leaks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves time forward by d, firing every callback due on the way.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set moves time to t. Moving backwards fires nothing.
func (m *Manual) Set(t time.Time) {
	for {
		m.mu.Lock()
		next := m.nextDue(t)
		if next == nil {
			if t.After(m.now) {
				m.now = t
			}
			m.mu.Unlock()
			return
		}
		m.now = next.at
		fn := next.fn
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			delete(m.timers, next.id)
		}
		m.mu.Unlock()
		fn()
	}
}

func (m *Manual) nextDue(t time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(m.timers))
	for _, timer := range m.timers {
		if !timer.at.After(t) {
			due = append(due, timer)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (m *Manual) schedule(d, period time.Duration, fn func()) contract.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	timer := &manualTimer{id: m.seq, at: m.now.Add(d), period: period, fn: fn}
	m.timers[timer.id] = timer
	return manualHandle{clock: m, id: timer.id}
}

type manualHandle struct {
	clock *Manual
	id    uint64
}

func (h manualHandle) Stop() {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	delete(h.clock.timers, h.id)
}
