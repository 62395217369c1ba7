// Package badgerstore persists collections in BadgerDB.
//
// Records live under "<collection>:<id>". Push ids come from a badger
// sequence per collection, zero padded so keys sort by insertion. Change
// notifications are delivered in process.
package badgerstore

import (
	"ai-live-chat/contract"
	"ai-live-chat/errors"
	"ai-live-chat/store"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const sequenceBandwidth = 100

type Store struct {
	db  *badger.DB
	log *slog.Logger
	// ttls gives records of a collection a badger TTL, so expired messages
	// leave the KV without a sweep.
	ttls map[string]time.Duration
	now  func() time.Time

	mu        sync.Mutex
	sequences map[string]*badger.Sequence
	channels  map[string]*store.Broadcaster
}

func New(db *badger.DB, log *slog.Logger, ttls map[string]time.Duration) *Store {
	return &Store{
		db:        db,
		log:       log,
		ttls:      ttls,
		now:       time.Now,
		sequences: make(map[string]*badger.Sequence),
		channels:  make(map[string]*store.Broadcaster),
	}
}

func (s *Store) Push(_ context.Context, collection string, record []byte) (string, error) {
	s.mu.Lock()
	seq, err := s.sequenceLocked(collection)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	n, err := seq.Next()
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	id := fmt.Sprintf("%020d", n+1)
	version, snapshot, b, err := s.writeLocked(collection, func(txn *badger.Txn) error {
		return txn.SetEntry(s.entry(collection, id, record))
	})
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	b.Deliver(version, snapshot)
	return id, nil
}

func (s *Store) Set(_ context.Context, collection, id string, record []byte) error {
	s.mu.Lock()
	version, snapshot, b, err := s.writeLocked(collection, func(txn *badger.Txn) error {
		return txn.SetEntry(s.entry(collection, id, record))
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	b.Deliver(version, snapshot)
	return nil
}

// Remove deletes the record. Deleting a missing key is a no-op in badger.
func (s *Store) Remove(_ context.Context, collection, id string) error {
	s.mu.Lock()
	version, snapshot, b, err := s.writeLocked(collection, func(txn *badger.Txn) error {
		return txn.Delete(key(collection, id))
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	b.Deliver(version, snapshot)
	return nil
}

func (s *Store) List(_ context.Context, collection string) (contract.Snapshot, error) {
	snapshot, err := s.scan(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return snapshot, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, onChange func(contract.Snapshot), onError func(error)) (contract.Subscription, error) {
	s.mu.Lock()
	b := s.broadcasterLocked(collection)
	version := b.Current()
	snapshot, err := s.scan(collection)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	sub, initial := b.Register(onChange, onError)
	s.mu.Unlock()

	initial(version, snapshot)
	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub, nil
}

// Close releases the id sequences. The database stays open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for collection, seq := range s.sequences {
		if releaseErr := seq.Release(); releaseErr != nil {
			s.log.Warn("Unable to release sequence", "collection", collection, "error", releaseErr)
			err = releaseErr
		}
	}
	s.sequences = make(map[string]*badger.Sequence)
	return err
}

func (s *Store) entry(collection, id string, record []byte) *badger.Entry {
	e := badger.NewEntry(key(collection, id), record)
	if ttl, ok := s.ttls[collection]; ok && ttl > 0 {
		e.ExpiresAt = expiresAt(s.now(), ttl)
	}
	return e
}

// expiresAt is the badger expiry, in unix seconds, of a record written at
// now. Badger drops a key once the current second reaches it, so the
// deadline is rounded up: the key never leaves before now+ttl.
func expiresAt(now time.Time, ttl time.Duration) uint64 {
	deadline := now.Add(ttl)
	sec := deadline.Unix()
	if deadline.Nanosecond() > 0 {
		sec++
	}
	return uint64(sec)
}

func (s *Store) writeLocked(collection string, fn func(txn *badger.Txn) error) (uint64, contract.Snapshot, *store.Broadcaster, error) {
	if err := s.db.Update(fn); err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	snapshot, err := s.scan(collection)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	b := s.broadcasterLocked(collection)
	return b.Next(), snapshot, b, nil
}

// scan reads every live key of the collection with a prefix iteration.
func (s *Store) scan(collection string) (contract.Snapshot, error) {
	snapshot := make(contract.Snapshot)
	prefix := []byte(collection + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			snapshot[id] = value
		}
		return nil
	})
	return snapshot, err
}

func (s *Store) sequenceLocked(collection string) (*badger.Sequence, error) {
	if seq, ok := s.sequences[collection]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence([]byte("seq:"+collection), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	s.sequences[collection] = seq
	return seq, nil
}

func (s *Store) broadcasterLocked(collection string) *store.Broadcaster {
	b, ok := s.channels[collection]
	if !ok {
		b = store.NewBroadcaster()
		s.channels[collection] = b
	}
	return b
}

func key(collection, id string) []byte {
	return []byte(collection + ":" + id)
}
