package redisstore

import (
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "", slog.Default()), mr
}

type latest struct {
	mu       sync.Mutex
	snapshot contract.Snapshot
	calls    int
}

func (l *latest) onChange(snapshot contract.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot = snapshot
	l.calls++
}

func (l *latest) get() (contract.Snapshot, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot, l.calls
}

func TestStore_PushListRemove(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, mr := newStore(t)

	id, err := s.Push(ctx, domain.MessagesCollection, []byte(`{"text":"hi"}`))
	req.NoError(err)
	req.Equal("00000000000000000001", id)
	req.Equal(`{"text":"hi"}`, mr.HGet("chat:messages", id))

	snapshot, err := s.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	req.Equal(contract.Snapshot{id: []byte(`{"text":"hi"}`)}, snapshot)

	req.NoError(s.Remove(ctx, domain.MessagesCollection, id))
	req.NoError(s.Remove(ctx, domain.MessagesCollection, id))
	snapshot, err = s.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	req.Empty(snapshot)
}

func TestStore_SubscribersSeeOtherWriters(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, mr := newStore(t)
	// Given a second relay sharing the same redis
	other := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", slog.Default())

	got := &latest{}
	sub, err := s.Subscribe(ctx, domain.PresenceCollection, got.onChange, nil)
	req.NoError(err)
	defer sub.Unsubscribe()
	_, calls := got.get()
	req.Equal(1, calls)

	req.NoError(other.Set(ctx, domain.PresenceCollection, "s1", []byte(`{"online":true}`)))
	req.Eventually(func() bool {
		snapshot, _ := got.get()
		return len(snapshot) == 1
	}, time.Second, 10*time.Millisecond)

	req.NoError(other.Remove(ctx, domain.PresenceCollection, "s1"))
	req.Eventually(func() bool {
		snapshot, _ := got.get()
		return len(snapshot) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, _ := newStore(t)

	got := &latest{}
	sub, err := s.Subscribe(ctx, domain.MessagesCollection, got.onChange, nil)
	req.NoError(err)
	sub.Unsubscribe()
	<-sub.(*subscription).done

	_, err = s.Push(ctx, domain.MessagesCollection, []byte("x"))
	req.NoError(err)
	time.Sleep(50 * time.Millisecond)
	_, calls := got.get()
	req.Equal(1, calls)
}

func TestStore_Unavailable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, mr := newStore(t)
	mr.Close()

	_, err := s.Push(ctx, domain.MessagesCollection, []byte("x"))
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	_, err = s.Subscribe(ctx, domain.MessagesCollection, func(contract.Snapshot) {}, nil)
	req.ErrorIs(err, errors.ErrSubscription)
}
