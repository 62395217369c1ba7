// Package memory is an in-process contract.Store, used by tests and by the
// relay when no persistent backend is configured.
package memory

import (
	"ai-live-chat/contract"
	"ai-live-chat/errors"
	"ai-live-chat/store"
	"context"
	"fmt"
	"sync"
)

type Store struct {
	mu          sync.Mutex
	seq         uint64
	collections map[string]map[string][]byte
	channels    map[string]*store.Broadcaster
	err         error
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string][]byte),
		channels:    make(map[string]*store.Broadcaster),
	}
}

// Push assigns zero padded increasing ids so keys sort by insertion.
func (s *Store) Push(_ context.Context, collection string, record []byte) (string, error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return "", s.unavailable()
	}
	s.seq++
	id := fmt.Sprintf("%020d", s.seq)
	s.collectionLocked(collection)[id] = append([]byte(nil), record...)
	version, snapshot, b := s.changedLocked(collection)
	s.mu.Unlock()

	b.Deliver(version, snapshot)
	return id, nil
}

func (s *Store) Set(_ context.Context, collection, id string, record []byte) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.unavailable()
	}
	s.collectionLocked(collection)[id] = append([]byte(nil), record...)
	version, snapshot, b := s.changedLocked(collection)
	s.mu.Unlock()

	b.Deliver(version, snapshot)
	return nil
}

func (s *Store) Remove(_ context.Context, collection, id string) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.unavailable()
	}
	records := s.collectionLocked(collection)
	if _, ok := records[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(records, id)
	version, snapshot, b := s.changedLocked(collection)
	s.mu.Unlock()

	b.Deliver(version, snapshot)
	return nil
}

func (s *Store) List(_ context.Context, collection string) (contract.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.unavailable()
	}
	return store.Clone(s.collectionLocked(collection)), nil
}

// Subscribe delivers the current snapshot before returning. The
// subscription ends with Unsubscribe or when ctx is done.
func (s *Store) Subscribe(ctx context.Context, collection string, onChange func(contract.Snapshot), onError func(error)) (contract.Subscription, error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, s.unavailable())
	}
	b := s.broadcasterLocked(collection)
	version := b.Current()
	snapshot := store.Clone(s.collectionLocked(collection))
	sub, initial := b.Register(onChange, onError)
	s.mu.Unlock()

	initial(version, snapshot)
	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub, nil
}

// Fail makes every call fail with err and reports it to subscribers,
// the way a dropped backend would.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.err = err
	channels := make([]*store.Broadcaster, 0, len(s.channels))
	for _, b := range s.channels {
		channels = append(channels, b)
	}
	s.mu.Unlock()

	for _, b := range channels {
		b.Fail(fmt.Errorf("%w: %w", errors.ErrSubscription, err))
	}
}

// Recover undoes Fail and pushes a fresh snapshot to subscribers.
func (s *Store) Recover() {
	s.mu.Lock()
	s.err = nil
	type pending struct {
		b        *store.Broadcaster
		version  uint64
		snapshot contract.Snapshot
	}
	var deliveries []pending
	for collection := range s.channels {
		version, snapshot, b := s.changedLocked(collection)
		deliveries = append(deliveries, pending{b: b, version: version, snapshot: snapshot})
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d.b.Deliver(d.version, d.snapshot)
	}
}

// Subscribers counts live subscriptions on a collection.
func (s *Store) Subscribers(collection string) int {
	s.mu.Lock()
	b, ok := s.channels[collection]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return b.Len()
}

func (s *Store) unavailable() error {
	return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, s.err)
}

func (s *Store) collectionLocked(collection string) map[string][]byte {
	records, ok := s.collections[collection]
	if !ok {
		records = make(map[string][]byte)
		s.collections[collection] = records
	}
	return records
}

func (s *Store) broadcasterLocked(collection string) *store.Broadcaster {
	b, ok := s.channels[collection]
	if !ok {
		b = store.NewBroadcaster()
		s.channels[collection] = b
	}
	return b
}

func (s *Store) changedLocked(collection string) (uint64, contract.Snapshot, *store.Broadcaster) {
	b := s.broadcasterLocked(collection)
	return b.Next(), store.Clone(s.collectionLocked(collection)), b
}
