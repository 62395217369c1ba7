package clock

import (
	"ai-live-chat/contract"
	"sync"
	"time"
)

// System is the wall clock backed by runtime timers.
type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) AfterFunc(d time.Duration, fn func()) contract.Handle {
	return timerHandle{time.AfterFunc(d, fn)}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Stop() { h.t.Stop() }

// Every runs fn on its own goroutine until the handle is stopped.
// A tick that is already running when Stop is called still completes.
func (System) Every(period time.Duration, fn func()) contract.Handle {
	ticker := time.NewTicker(period)
	h := &ticking{ticker: ticker, done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return h
}

type ticking struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (h *ticking) Stop() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.done)
	})
}
