package lifecycle

import (
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"sync"
)

type observer struct {
	manager  *Manager
	mu       sync.Mutex
	messages []domain.Message
	closed   bool
	out      chan domain.LiveSet
}

func (o *observer) onChange(snapshot contract.Snapshot) {
	messages := make([]domain.Message, 0, len(snapshot))
	for id, record := range snapshot {
		msg, err := domain.DecodeMessage(id, record)
		if err != nil {
			o.manager.log.Debug("Skipping malformed message", "id", id, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	o.manager.status.MarkConnected()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = messages
	o.emitLocked()
}

// onError keeps the last known messages: they keep aging on refresh.
func (o *observer) onError(err error) {
	o.manager.log.Warn("Message subscription failed", "error", err)
	o.manager.status.MarkDisconnected(err)
	o.refresh()
}

func (o *observer) refresh() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitLocked()
}

func (o *observer) emitLocked() {
	if o.closed {
		return
	}
	set := domain.NewLiveSet(o.manager.clock.Now(), o.messages)
	// only the latest set is kept for the reader
	select {
	case <-o.out:
	default:
	}
	o.out <- set
}

func (o *observer) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.out)
}
