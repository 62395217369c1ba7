package badgerstore

import (
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_PushListRemove(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := New(openDB(t), slog.Default(), nil)
	defer s.Close()

	first, err := s.Push(ctx, domain.MessagesCollection, []byte("a"))
	req.NoError(err)
	second, err := s.Push(ctx, domain.MessagesCollection, []byte("b"))
	req.NoError(err)
	req.Less(first, second)

	// Records of another collection sharing a prefix are not listed
	req.NoError(s.Set(ctx, "messagesArchive", "x", []byte("c")))

	snapshot, err := s.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	req.Equal(contract.Snapshot{first: []byte("a"), second: []byte("b")}, snapshot)

	req.NoError(s.Remove(ctx, domain.MessagesCollection, first))
	req.NoError(s.Remove(ctx, domain.MessagesCollection, first))
	snapshot, err = s.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	req.Len(snapshot, 1)
}

func TestStore_SubscribeDeliversSnapshots(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(openDB(t), slog.Default(), nil)
	defer s.Close()

	var got []contract.Snapshot
	sub, err := s.Subscribe(ctx, domain.PresenceCollection, func(snapshot contract.Snapshot) {
		got = append(got, snapshot)
	}, nil)
	req.NoError(err)
	req.Len(got, 1)
	req.Empty(got[0])

	req.NoError(s.Set(ctx, domain.PresenceCollection, "s1", []byte(`{"online":true}`)))
	req.Len(got, 2)
	req.Contains(got[1], "s1")

	sub.Unsubscribe()
	req.NoError(s.Remove(ctx, domain.PresenceCollection, "s1"))
	req.Len(got, 2)
}

func TestStore_IdsSurviveReopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	s := New(db, slog.Default(), nil)
	first, err := s.Push(ctx, domain.MessagesCollection, []byte("a"))
	req.NoError(err)
	req.NoError(s.Close())
	req.NoError(db.Close())

	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	s = New(db, slog.Default(), nil)
	defer s.Close()
	second, err := s.Push(ctx, domain.MessagesCollection, []byte("b"))
	req.NoError(err)

	req.Less(first, second)
}

func TestStore_CollectionTTL(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := New(openDB(t), slog.Default(), map[string]time.Duration{domain.MessagesCollection: time.Second})
	defer s.Close()

	_, err := s.Push(ctx, domain.MessagesCollection, []byte("a"))
	req.NoError(err)
	req.NoError(s.Set(ctx, domain.PresenceCollection, "s1", []byte("b")))

	// badger TTLs have a one second resolution
	req.Eventually(func() bool {
		snapshot, err := s.List(ctx, domain.MessagesCollection)
		return err == nil && len(snapshot) == 0
	}, 5*time.Second, 100*time.Millisecond)

	snapshot, err := s.List(ctx, domain.PresenceCollection)
	req.NoError(err)
	req.Len(snapshot, 1)
}

func TestStore_TTLNeverExpiresEarly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openDB(t)
	s := New(db, slog.Default(), map[string]time.Duration{domain.MessagesCollection: domain.DefaultTTL})
	defer s.Close()

	// Given a message written late in a second
	written := time.Now().Truncate(time.Second).Add(950 * time.Millisecond)
	s.now = func() time.Time { return written }
	id, err := s.Push(ctx, domain.MessagesCollection, []byte("hello"))
	req.NoError(err)

	var expires uint64
	req.NoError(db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(domain.MessagesCollection, id))
		if err != nil {
			return err
		}
		expires = item.ExpiresAt()
		return nil
	}))

	// Then badger still holds it 9.9 s later: a key expires once the
	// current unix second reaches ExpiresAt
	req.Greater(expires, uint64(written.Add(9900*time.Millisecond).Unix()))
	req.False(time.Unix(int64(expires), 0).Before(written.Add(domain.DefaultTTL)))
}

func TestExpiresAt_RoundsUp(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"whole second", time.Unix(100, 0), 110},
		{"just after a second", time.Unix(100, 1), 111},
		{"late in a second", time.Unix(100, 999_000_000), 111},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, uint64(tt.want), expiresAt(tt.now, 10*time.Second))
		})
	}
}
