package store

import (
	"ai-live-chat/contract"
	"ai-live-chat/errors"
	"context"
	goerrors "errors"
	"fmt"
	"sync"
)

type hookKey struct {
	collection string
	id         string
}

// Session binds a connection to a store and remembers the records it asked
// to remove on disconnect. Whoever owns the connection calls Terminate when
// it drops, whatever the client did. Once terminated, the session refuses
// writes so nothing can outlive the removals.
type Session struct {
	contract.Store
	mu         sync.RWMutex
	hooks      map[hookKey]struct{}
	terminated bool
}

func NewSession(store contract.Store) *Session {
	return &Session{Store: store, hooks: make(map[hookKey]struct{})}
}

// OnDisconnectRemove registers a removal. On an already terminated session
// the removal happens right away.
func (s *Session) OnDisconnectRemove(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return s.Store.Remove(ctx, collection, id)
	}
	s.hooks[hookKey{collection: collection, id: id}] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Push and Set hold the read lock across the write: Terminate waits for
// writes in flight, then removes what they wrote.
func (s *Session) Push(ctx context.Context, collection string, record []byte) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.terminated {
		return "", fmt.Errorf("%w: session terminated", errors.ErrClosed)
	}
	return s.Store.Push(ctx, collection, record)
}

func (s *Session) Set(ctx context.Context, collection, id string, record []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.terminated {
		return fmt.Errorf("%w: session terminated", errors.ErrClosed)
	}
	return s.Store.Set(ctx, collection, id, record)
}

// Cancel forgets a registered removal, after a graceful leave for example.
func (s *Session) Cancel(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hooks, hookKey{collection: collection, id: id})
}

// Registered is the number of pending removals.
func (s *Session) Registered() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hooks)
}

// Terminate fires every registered removal once.
func (s *Session) Terminate(ctx context.Context) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil
	}
	s.terminated = true
	hooks := s.hooks
	s.hooks = make(map[hookKey]struct{})
	s.mu.Unlock()

	var errs []error
	for hook := range hooks {
		if err := s.Store.Remove(ctx, hook.collection, hook.id); err != nil {
			errs = append(errs, err)
		}
	}
	return goerrors.Join(errs...)
}
