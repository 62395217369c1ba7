// Package wsstore is the participant side of the relay: a contract.Store
// and contract.DisconnectRemover spoken over one websocket.
package wsstore

import (
	"ai-live-chat/contract"
	"ai-live-chat/errors"
	"ai-live-chat/relay"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type Store struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextReq uint64
	nextSub uint64
	pending map[uint64]chan relay.Frame
	subs    map[uint64]*subscription
	err     error
	done    chan struct{}
}

// Dial connects to the relay websocket endpoint, e.g. ws://host:8080/ws.
func Dial(ctx context.Context, url string, log *slog.Logger) (*Store, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	s := &Store{
		conn:    conn,
		log:     log,
		pending: make(map[uint64]chan relay.Frame),
		subs:    make(map[uint64]*subscription),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Store) Push(ctx context.Context, collection string, record []byte) (string, error) {
	reply, err := s.request(ctx, relay.Frame{Op: relay.OpPush, Collection: collection, Record: record})
	if err != nil {
		return "", err
	}
	return reply.ID, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, record []byte) error {
	_, err := s.request(ctx, relay.Frame{Op: relay.OpSet, Collection: collection, ID: id, Record: record})
	return err
}

func (s *Store) Remove(ctx context.Context, collection, id string) error {
	_, err := s.request(ctx, relay.Frame{Op: relay.OpRemove, Collection: collection, ID: id})
	return err
}

func (s *Store) List(ctx context.Context, collection string) (contract.Snapshot, error) {
	reply, err := s.request(ctx, relay.Frame{Op: relay.OpList, Collection: collection})
	if err != nil {
		return nil, err
	}
	if reply.Snapshot == nil {
		return contract.Snapshot{}, nil
	}
	return reply.Snapshot, nil
}

// OnDisconnectRemove asks the relay to remove the record once this socket
// is gone, however it goes.
func (s *Store) OnDisconnectRemove(ctx context.Context, collection, id string) error {
	_, err := s.request(ctx, relay.Frame{Op: relay.OpOnDisconnectRemove, Collection: collection, ID: id})
	return err
}

func (s *Store) Subscribe(ctx context.Context, collection string, onChange func(contract.Snapshot), onError func(error)) (contract.Subscription, error) {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	s.nextSub++
	sub := &subscription{store: s, id: s.nextSub, onChange: onChange, onError: onError}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	if _, err := s.request(ctx, relay.Frame{Op: relay.OpSubscribe, SubID: sub.id, Collection: collection}); err != nil {
		s.forget(sub.id)
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub, nil
}

// Close ends the connection with a close frame.
func (s *Store) Close() error {
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	_ = s.conn.Close()
	return err
}

// Drop cuts the TCP connection without any close frame, the way a crashed
// client or a lost network does.
func (s *Store) Drop() error {
	return s.conn.NetConn().Close()
}

// Done is closed once the connection is gone and subscriptions were failed.
func (s *Store) Done() <-chan struct{} { return s.done }

func (s *Store) request(ctx context.Context, frame relay.Frame) (relay.Frame, error) {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return relay.Frame{}, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	s.nextReq++
	frame.ReqID = s.nextReq
	wait := make(chan relay.Frame, 1)
	s.pending[frame.ReqID] = wait
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, frame.ReqID)
		s.mu.Unlock()
	}()

	if err := s.write(frame); err != nil {
		return relay.Frame{}, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return relay.Frame{}, ctx.Err()
	case <-s.done:
		return relay.Frame{}, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, errors.ErrClosed)
	case reply := <-wait:
		if reply.Error != "" {
			return reply, fmt.Errorf("%w: %s: %s", errors.ErrStoreUnavailable, reply.Code, reply.Error)
		}
		return reply, nil
	}
}

func (s *Store) write(frame relay.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop dispatches acks to waiting requests and snapshots to their
// subscription, in arrival order.
func (s *Store) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(err)
			return
		}
		var frame relay.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("Invalid frame from relay", "error", err)
			continue
		}
		switch frame.Op {
		case relay.OpAck:
			s.mu.Lock()
			wait, ok := s.pending[frame.ReqID]
			s.mu.Unlock()
			if ok {
				wait <- frame
			}
		case relay.OpSnapshot:
			if sub := s.lookup(frame.SubID); sub != nil {
				sub.deliver(frame.Snapshot)
			}
		case relay.OpSubError:
			if sub := s.lookup(frame.SubID); sub != nil {
				sub.fail(fmt.Errorf("%w: %s", errors.ErrSubscription, frame.Error))
			}
		}
	}
}

func (s *Store) shutdown(cause error) {
	s.mu.Lock()
	s.err = fmt.Errorf("%w: %v", errors.ErrClosed, cause)
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.log.Debug("Relay connection closed", "error", cause)
	for _, sub := range subs {
		sub.fail(fmt.Errorf("%w: %w", errors.ErrSubscription, errors.ErrClosed))
	}
	close(s.done)
}

func (s *Store) lookup(id uint64) *subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

func (s *Store) forget(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[id]
	delete(s.subs, id)
	return ok
}

type subscription struct {
	store    *Store
	id       uint64
	onChange func(contract.Snapshot)
	onError  func(error)
	once     sync.Once
}

func (s *subscription) deliver(snapshot map[string][]byte) {
	if snapshot == nil {
		snapshot = contract.Snapshot{}
	}
	s.onChange(snapshot)
}

func (s *subscription) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// Unsubscribe stops local delivery at once and tells the relay in the
// background.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if !s.store.forget(s.id) {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			defer cancel()
			if _, err := s.store.request(ctx, relay.Frame{Op: relay.OpUnsubscribe, SubID: s.id}); err != nil {
				s.store.log.Debug("Unsubscribe not acknowledged", "sub_id", s.id, "error", err)
			}
		}()
	})
}
