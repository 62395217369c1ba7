package lifecycle

import (
	"ai-live-chat/clock"
	"ai-live-chat/connection"
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"ai-live-chat/mocks"
	"ai-live-chat/store/memory"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	start  = time.UnixMilli(1_760_000_000_000)
	author = domain.Identity{UserID: "u1", DisplayName: "Quokka42"}
)

type fixture struct {
	store   *memory.Store
	clock   *clock.Manual
	status  *connection.Status
	manager *Manager
}

func newFixture() fixture {
	s := memory.New()
	c := clock.NewManual(start)
	status := connection.NewStatus(slog.Default())
	return fixture{store: s, clock: c, status: status, manager: NewManager(s, c, status, slog.Default(), DefaultConfig())}
}

// latest returns the set waiting in the channel. Deliveries are synchronous
// with the memory store and the manual clock.
func latest(t *testing.T, ch <-chan domain.LiveSet) domain.LiveSet {
	t.Helper()
	select {
	case set, ok := <-ch:
		require.True(t, ok, "channel closed")
		return set
	default:
		require.Fail(t, "no live set pending")
		return domain.LiveSet{}
	}
}

func TestPublish_RejectsInvalidTextWithoutTouchingStore(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	// No expectation: any store call fails the test
	s := mocks.NewMockStore(ctrl)
	manager := NewManager(s, clock.NewManual(start), connection.NewStatus(slog.Default()), slog.Default(), DefaultConfig())
	ctx := context.Background()

	_, err := manager.Publish(ctx, "   \n\t", author)
	req.ErrorIs(err, errors.ErrEmptyMessage)
	req.ErrorIs(err, errors.ErrRejected)

	_, err = manager.Publish(ctx, strings.Repeat("a", 501), author)
	req.ErrorIs(err, errors.ErrMessageTooLong)
	req.ErrorIs(err, errors.ErrRejected)
}

func TestPublish_TrimsAndStampsMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	id, err := f.manager.Publish(ctx, "  hello  ", author)
	req.NoError(err)

	snapshot, err := f.store.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	msg, err := domain.DecodeMessage(id, snapshot[id])
	req.NoError(err)
	req.Equal("hello", msg.Text)
	req.True(msg.CreatedAt.Equal(start))
	req.Equal(10*time.Second, msg.ExpiresAt.Sub(msg.CreatedAt))

	// Exactly 500 characters is accepted
	_, err = f.manager.Publish(ctx, strings.Repeat("é", 500), author)
	req.NoError(err)
}

func TestPublish_StoreFailureFlipsStatus(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	s := mocks.NewMockStore(ctrl)
	status := connection.NewStatus(slog.Default())
	status.MarkConnected()
	manager := NewManager(s, clock.NewManual(start), status, slog.Default(), DefaultConfig())

	s.EXPECT().Push(gomock.Any(), domain.MessagesCollection, gomock.Any()).Return("", fmt.Errorf("timeout")).Times(1)

	_, err := manager.Publish(context.Background(), "hello", author)

	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.False(status.Connected())
}

func TestObserve_MessageAgesOutAtTTL(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sets, err := f.manager.Observe(ctx)
	req.NoError(err)
	req.Zero(latest(t, sets).Len())
	req.True(f.status.Connected())

	id, err := f.manager.Publish(ctx, "hello", author)
	req.NoError(err)
	req.True(latest(t, sets).Contains(id))

	// At 9.9s it is still displayed
	f.clock.Advance(9900 * time.Millisecond)
	set := latest(t, sets)
	req.True(set.Contains(id))
	req.Equal(start.Add(9900*time.Millisecond), set.At)

	// At 10.1s the refresh alone has dropped it
	f.clock.Advance(200 * time.Millisecond)
	req.False(latest(t, sets).Contains(id))
}

func TestObserve_OrderIgnoresArrival(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sets, err := f.manager.Observe(ctx)
	req.NoError(err)

	// Given records written newest first, with a tie on createdAt
	write := func(id string, offset time.Duration) {
		record, err := domain.EncodeMessage(domain.NewMessage(id, author, start.Add(offset), domain.DefaultTTL))
		req.NoError(err)
		req.NoError(f.store.Set(ctx, domain.MessagesCollection, id, record))
	}
	write("c", 2*time.Second)
	write("b", time.Second)
	write("a", time.Second)

	first := latest(t, sets)
	req.Equal([]string{"a", "b", "c"}, first.IDs())

	// A later refresh keeps the relative order of what is still live
	f.clock.Advance(10500 * time.Millisecond)
	req.Equal([]string{"a", "b", "c"}, latest(t, sets).IDs())
	f.clock.Advance(time.Second)
	req.Equal([]string{"c"}, latest(t, sets).IDs())
}

func TestObserve_SkipsMalformedRecords(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sets, err := f.manager.Observe(ctx)
	req.NoError(err)

	req.NoError(f.store.Set(ctx, domain.MessagesCollection, "junk", []byte("{")))
	id, err := f.manager.Publish(ctx, "hello", author)
	req.NoError(err)

	req.Equal([]string{id}, latest(t, sets).IDs())
}

func TestObserve_SubscriptionErrorKeepsLastSet(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sets, err := f.manager.Observe(ctx)
	req.NoError(err)
	id, err := f.manager.Publish(ctx, "hello", author)
	req.NoError(err)
	latest(t, sets)

	// When the stream errors
	f.store.Fail(fmt.Errorf("socket closed"))

	// Then the status flips but the message is still shown
	req.False(f.status.Connected())
	req.True(latest(t, sets).Contains(id))

	// And it still ages out on time
	f.clock.Advance(10 * time.Second)
	req.Zero(latest(t, sets).Len())

	// Recovery reconnects the indicator
	f.store.Recover()
	req.True(f.status.Connected())
}

func TestObserve_CancelReleasesResources(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	sets, err := f.manager.Observe(ctx)
	req.NoError(err)
	req.Equal(1, f.clock.Pending())
	req.Equal(1, f.store.Subscribers(domain.MessagesCollection))

	cancel()

	req.Eventually(func() bool {
		return f.clock.Pending() == 0 && f.store.Subscribers(domain.MessagesCollection) == 0
	}, time.Second, 5*time.Millisecond)
	req.Eventually(func() bool {
		for {
			select {
			case _, ok := <-sets:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
}

func TestObserve_SubscribeFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.store.Fail(fmt.Errorf("offline"))

	_, err := f.manager.Observe(context.Background())

	req.ErrorIs(err, errors.ErrSubscription)
	req.False(f.status.Connected())
	req.Zero(f.clock.Pending())
}

func TestSweepExpired_ConcurrentRunsAreIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := f.manager.Publish(ctx, fmt.Sprintf("m%d", i), author)
		req.NoError(err)
	}
	last, err := f.manager.Publish(ctx, "expires with the others", author)
	req.NoError(err)
	f.clock.Advance(domain.DefaultTTL)
	_, err = f.manager.Publish(ctx, "fresh", author)
	req.NoError(err)

	// When two participants sweep at the same time
	var wg sync.WaitGroup
	errs := make([]error, 2)
	counts := make([]int, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], errs[i] = f.manager.SweepExpired(ctx)
		}(i)
	}
	wg.Wait()

	// Then neither fails and no expired record is left
	req.NoError(errs[0])
	req.NoError(errs[1])
	req.GreaterOrEqual(counts[0]+counts[1], 11)
	snapshot, err := f.store.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	req.Len(snapshot, 1)
	req.NotContains(snapshot, last)

	// Sweeping again has nothing to do
	count, err := f.manager.SweepExpired(ctx)
	req.NoError(err)
	req.Zero(count)
}

func TestSweepExpired_RemovesMalformedRecords(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture()

	// Given a live message and a record no participant can decode
	id, err := f.manager.Publish(ctx, "hello", author)
	req.NoError(err)
	req.NoError(f.store.Set(ctx, domain.MessagesCollection, "broken", []byte("{")))

	// When sweeping before the message expires
	count, err := f.manager.SweepExpired(ctx)

	// Then only the malformed record is gone
	req.NoError(err)
	req.Equal(1, count)
	snapshot, err := f.store.List(ctx, domain.MessagesCollection)
	req.NoError(err)
	req.Equal([]string{id}, lo.Keys(snapshot))
}

func TestSweepExpired_ReportsStoreErrors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	s := mocks.NewMockStore(ctrl)
	c := clock.NewManual(start)
	manager := NewManager(s, c, connection.NewStatus(slog.Default()), slog.Default(), DefaultConfig())

	expired, err := domain.EncodeMessage(domain.NewMessage("old", author, start.Add(-time.Minute), domain.DefaultTTL))
	req.NoError(err)
	s.EXPECT().List(gomock.Any(), domain.MessagesCollection).Return(contract.Snapshot{"a": expired, "b": expired}, nil).Times(1)
	s.EXPECT().Remove(gomock.Any(), domain.MessagesCollection, "a").Return(nil).Times(1)
	s.EXPECT().Remove(gomock.Any(), domain.MessagesCollection, "b").Return(fmt.Errorf("denied")).Times(1)

	count, err := manager.SweepExpired(context.Background())

	req.Equal(1, count)
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.ErrorContains(err, "denied")
}
