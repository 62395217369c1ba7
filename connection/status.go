// Package connection tracks whether the participant is connected to the store.
package connection

import (
	"log/slog"
	"sync"
)

// Change is delivered to listeners each time the indicator flips.
type Change struct {
	Connected bool
	Err       error
}

// Status starts disconnected. Only flips are reported to listeners, one at a
// time and in the order they happened. Listeners must not flip the status.
type Status struct {
	// deliver is held from a flip until its listeners return, so a later
	// flip cannot overtake an earlier one.
	deliver   sync.Mutex
	mu        sync.Mutex
	connected bool
	lastErr   error
	nextID    int
	listeners map[int]func(Change)
	log       *slog.Logger
}

func NewStatus(log *slog.Logger) *Status {
	return &Status{listeners: make(map[int]func(Change)), log: log}
}

func (s *Status) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Err is the error behind the last disconnection, if any.
func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Status) MarkConnected() {
	s.set(true, nil)
}

func (s *Status) MarkDisconnected(err error) {
	s.set(false, err)
}

// OnChange registers fn and returns a function removing it.
func (s *Status) OnChange(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Status) set(connected bool, err error) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	if err != nil {
		s.lastErr = err
	}
	if s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	if connected {
		s.lastErr = nil
	}
	listeners := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if connected {
		s.log.Info("Connected to store")
	} else {
		s.log.Warn("Disconnected from store", "error", err)
	}
	for _, fn := range listeners {
		fn(Change{Connected: connected, Err: err})
	}
}
