// Package store holds the pieces shared by every contract.Store backend.
package store

import (
	"ai-live-chat/contract"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// Broadcaster fans snapshots out to the subscribers of one collection.
//
// Backends stamp each snapshot with a version taken under their own lock and
// deliver it after releasing that lock. A subscriber never receives a version
// older than one it already got, so concurrent writers cannot make a stale
// snapshot overwrite a fresh one.
type Broadcaster struct {
	mu      sync.Mutex
	version uint64
	nextID  uint64
	subs    map[uint64]*subscriber
}

type subscriber struct {
	mu        sync.Mutex
	delivered uint64
	closed    atomic.Bool
	onChange  func(contract.Snapshot)
	onError   func(error)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{version: 1, subs: make(map[uint64]*subscriber)}
}

// Next bumps and returns the version of a new snapshot.
func (b *Broadcaster) Next() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
	return b.version
}

// Current is the version of the latest snapshot.
func (b *Broadcaster) Current() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Len is the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Register adds a subscriber without delivering anything. Backends call it
// under their own lock, so no later mutation can miss it, and pass the
// initial snapshot to the returned func once that lock is released.
func (b *Broadcaster) Register(onChange func(contract.Snapshot), onError func(error)) (contract.Subscription, func(version uint64, snapshot contract.Snapshot)) {
	sub := &subscriber{onChange: onChange, onError: onError}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	return &subscription{broadcaster: b, id: id, sub: sub}, sub.deliver
}

// Add registers a subscriber and sends it the snapshot of version.
func (b *Broadcaster) Add(version uint64, snapshot contract.Snapshot, onChange func(contract.Snapshot), onError func(error)) contract.Subscription {
	sub, initial := b.Register(onChange, onError)
	initial(version, snapshot)
	return sub
}

// Deliver sends snapshot to everyone that has not seen a newer version.
func (b *Broadcaster) Deliver(version uint64, snapshot contract.Snapshot) {
	for _, sub := range b.snapshotSubs() {
		sub.deliver(version, snapshot)
	}
}

// Fail reports err to every subscriber.
func (b *Broadcaster) Fail(err error) {
	for _, sub := range b.snapshotSubs() {
		sub.fail(err)
	}
}

func (b *Broadcaster) snapshotSubs() []*subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (s *subscriber) deliver(version uint64, snapshot contract.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || version <= s.delivered {
		return
	}
	s.delivered = version
	s.onChange(Clone(snapshot))
}

func (s *subscriber) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || s.onError == nil {
		return
	}
	s.onError(err)
}

type subscription struct {
	broadcaster *Broadcaster
	id          uint64
	sub         *subscriber
	once        sync.Once
}

// Unsubscribe stops delivery. It is safe to call from inside a callback.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.closed.Store(true)
		s.broadcaster.mu.Lock()
		delete(s.broadcaster.subs, s.id)
		s.broadcaster.mu.Unlock()
	})
}

// Clone copies the map and every record so receivers can keep it.
func Clone(snapshot contract.Snapshot) contract.Snapshot {
	out := make(contract.Snapshot, len(snapshot))
	for id, record := range snapshot {
		out[id] = append([]byte(nil), record...)
	}
	return out
}

// Keys lists the ids of a snapshot.
func Keys(snapshot contract.Snapshot) []string {
	return lo.Keys(snapshot)
}
