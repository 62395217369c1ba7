package test

import (
	"ai-live-chat/chat"
	"ai-live-chat/clock"
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/repositories"
	"ai-live-chat/store"
	"ai-live-chat/store/badgerstore"
	"ai-live-chat/store/memory"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var start = time.UnixMilli(1_760_000_000_000)

type participant struct {
	conn    *store.Session
	session *chat.Session
}

func join(t *testing.T, backend contract.Store, clk contract.Clock, identities repositories.IIdentityRepository) participant {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conn := store.NewSession(backend)
	session, err := chat.NewSession(chat.Deps{
		Store:      conn,
		Clock:      clk,
		Identities: identities,
		Log:        log,
	}, chat.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, session.Start(context.Background()))
	t.Cleanup(func() { _ = session.Close(context.Background()) })
	return participant{conn: conn, session: session}
}

// latest returns the most recent buffered value of a latest-wins channel.
func latest[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	var last T
	got := false
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				require.True(t, got, "channel closed without a value")
				return last
			}
			last, got = v, true
		default:
			require.True(t, got, "no value emitted")
			return last
		}
	}
}

func backends(t *testing.T) map[string]func() contract.Store {
	return map[string]func() contract.Store{
		"memory": func() contract.Store { return memory.New() },
		"badger": func() contract.Store {
			db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
				WithLoggingLevel(badger.ERROR).
				WithValueLogFileSize(16 << 20))
			require.NoError(t, err)
			s := badgerstore.New(db, slog.Default(), nil)
			t.Cleanup(func() {
				_ = s.Close()
				_ = db.Close()
			})
			return s
		},
	}
}

func Test_Scenario_MessageLivesTenSeconds(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			clk := clock.NewManual(start)
			backend := open()

			// Given A, known as Quokka42, and B in the room
			seeded := repositories.NewMemoryIdentityRepository()
			req.NoError(seeded.Save(domain.Identity{UserID: "u1", DisplayName: "Quokka42"}))
			a := join(t, backend, clk, seeded)
			b := join(t, backend, clk, repositories.NewMemoryIdentityRepository())
			req.Equal(2, latest(t, a.session.OnlineCount()))
			req.Equal(2, latest(t, b.session.OnlineCount()))

			// When A sends "hello"
			a.session.Type("hello")
			receipt, err := a.session.Send(ctx)
			req.NoError(err)

			// Then both see it with the author tag
			for _, p := range []participant{a, b} {
				set := latest(t, p.session.LiveSets())
				req.True(set.Contains(receipt.ID))
				req.Equal("Quokka42", set.Messages[0].AuthorName)
				req.Equal("u1", set.Messages[0].AuthorID)
			}
			req.True(a.session.IsOwn(latest(t, a.session.LiveSets()).Messages[0]))

			// And it is still there at 9.9s
			clk.Advance(9900 * time.Millisecond)
			req.True(latest(t, a.session.LiveSets()).Contains(receipt.ID))
			req.True(latest(t, b.session.LiveSets()).Contains(receipt.ID))

			// And gone for both at 10.1s
			clk.Advance(200 * time.Millisecond)
			req.False(latest(t, a.session.LiveSets()).Contains(receipt.ID))
			req.False(latest(t, b.session.LiveSets()).Contains(receipt.ID))

			// And the sweep removed it from the store
			clk.Advance(5 * time.Second)
			snapshot, err := backend.List(ctx, domain.MessagesCollection)
			req.NoError(err)
			req.Empty(snapshot)
		})
	}
}

func Test_Scenario_DroppedConnectionLeavesCount(t *testing.T) {
	req := require.New(t)
	clk := clock.NewManual(start)
	backend := memory.New()

	// Given two participants
	a := join(t, backend, clk, repositories.NewMemoryIdentityRepository())
	b := join(t, backend, clk, repositories.NewMemoryIdentityRepository())
	req.Equal(2, latest(t, a.session.OnlineCount()))

	// When B's connection drops without a goodbye
	req.NoError(b.conn.Terminate(context.Background()))

	// Then A counts itself alone
	req.Equal(1, latest(t, a.session.OnlineCount()))
	snapshot, err := backend.List(context.Background(), domain.PresenceCollection)
	req.NoError(err)
	req.Len(snapshot, 1)
}

func Test_Scenario_CooldownBetweenParticipantsIsLocal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := clock.NewManual(start)
	backend := memory.New()
	a := join(t, backend, clk, repositories.NewMemoryIdentityRepository())
	b := join(t, backend, clk, repositories.NewMemoryIdentityRepository())

	// When both send at the same instant
	a.session.Type("first")
	_, err := a.session.Send(ctx)
	req.NoError(err)
	b.session.Type("second")
	_, err = b.session.Send(ctx)

	// Then B is not throttled by A
	req.NoError(err)
	set := latest(t, a.session.LiveSets())
	req.Equal(2, set.Len())
	req.Equal("first", set.Messages[0].Text)
	req.Equal("second", set.Messages[1].Text)
}
