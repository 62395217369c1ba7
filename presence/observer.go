package presence

import (
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"context"
	"sync"
	"time"
)

type countObserver struct {
	counter *Counter
	ctx     context.Context

	mu      sync.Mutex
	records map[string]domain.PresenceRecord
	last    int
	closed  bool
	out     chan int
}

func (o *countObserver) onChange(snapshot contract.Snapshot) {
	records := make(map[string]domain.PresenceRecord, len(snapshot))
	for id, data := range snapshot {
		record, err := domain.DecodePresence(id, data)
		if err != nil {
			o.counter.log.Debug("Skipping malformed presence", "id", id, "error", err)
			continue
		}
		records[id] = record
	}
	o.counter.status.MarkConnected()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = records
	o.emitLocked(o.countLocked())
}

// onError keeps the last count.
func (o *countObserver) onError(err error) {
	o.counter.log.Warn("Presence subscription failed", "error", err)
	o.counter.status.MarkDisconnected(err)
}

// refresh recounts against time and removes stale records. Removal never
// runs inside a store callback.
func (o *countObserver) refresh() {
	o.mu.Lock()
	count := o.countLocked()
	stale := o.staleLocked()
	o.emitLocked(count)
	o.mu.Unlock()

	for _, id := range stale {
		if err := o.counter.store.Remove(o.ctx, domain.PresenceCollection, id); err != nil {
			o.counter.log.Debug("Unable to remove stale presence", "session_id", id, "error", err)
		}
	}
}

func (o *countObserver) countLocked() int {
	now := o.counter.clock.Now()
	count := 0
	for _, record := range o.records {
		if record.Online && !o.isStale(record, now) {
			count++
		}
	}
	return max(count, 1)
}

func (o *countObserver) staleLocked() []string {
	now := o.counter.clock.Now()
	var stale []string
	for id, record := range o.records {
		if o.isStale(record, now) {
			stale = append(stale, id)
		}
	}
	return stale
}

func (o *countObserver) isStale(record domain.PresenceRecord, now time.Time) bool {
	if !o.counter.HeartbeatMode() {
		return false
	}
	return record.IsStale(now, o.counter.cfg.Staleness)
}

func (o *countObserver) emitLocked(count int) {
	if o.closed || count == o.last {
		return
	}
	o.last = count
	select {
	case <-o.out:
	default:
	}
	o.out <- count
}

func (o *countObserver) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.out)
}
