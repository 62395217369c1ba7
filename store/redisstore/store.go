// Package redisstore shares collections through Redis so several relays can
// serve the same chat.
//
// A collection is a hash "<prefix>:<collection>". Push ids come from INCR on
// "<prefix>:<collection>:seq". Every mutation publishes on
// "<prefix>:<collection>:changes" and subscribers reload the hash.
package redisstore

import (
	"ai-live-chat/contract"
	"ai-live-chat/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "chat"

type Store struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

func New(client *redis.Client, prefix string, log *slog.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, log: log}
}

func (s *Store) hashKey(collection string) string { return s.prefix + ":" + collection }
func (s *Store) seqKey(collection string) string  { return s.hashKey(collection) + ":seq" }
func (s *Store) channel(collection string) string { return s.hashKey(collection) + ":changes" }

func (s *Store) Push(ctx context.Context, collection string, record []byte) (string, error) {
	n, err := s.client.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	id := fmt.Sprintf("%020d", n)
	if err := s.Set(ctx, collection, id, record); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, record []byte) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.hashKey(collection), id, record)
	pipe.Publish(ctx, s.channel(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return nil
}

// Remove only notifies when a field was actually deleted.
func (s *Store) Remove(ctx context.Context, collection, id string) error {
	deleted, err := s.client.HDel(ctx, s.hashKey(collection), id).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	if deleted == 0 {
		return nil
	}
	if err := s.client.Publish(ctx, s.channel(collection), id).Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) (contract.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.hashKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	snapshot := make(contract.Snapshot, len(fields))
	for id, record := range fields {
		snapshot[id] = []byte(record)
	}
	return snapshot, nil
}

// Subscribe confirms the channel subscription before reading the initial
// snapshot, so no change published in between is missed.
func (s *Store) Subscribe(ctx context.Context, collection string, onChange func(contract.Snapshot), onError func(error)) (contract.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	snapshot, err := s.List(ctx, collection)
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	onChange(snapshot)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{pubsub: pubsub, cancel: cancel, done: make(chan struct{})}
	go s.listen(subCtx, sub, collection, onChange, onError)
	return sub, nil
}

// listen reloads the hash on each notification. Notifications queued while
// a reload runs are coalesced into the next one.
func (s *Store) listen(ctx context.Context, sub *subscription, collection string, onChange func(contract.Snapshot), onError func(error)) {
	defer close(sub.done)
	defer sub.Unsubscribe()
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				if ctx.Err() == nil && onError != nil {
					onError(fmt.Errorf("%w: channel closed", errors.ErrSubscription))
				}
				return
			}
			drain(ch)
			snapshot, err := s.List(ctx, collection)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn("Unable to reload collection", "collection", collection, "error", err)
				if onError != nil {
					onError(fmt.Errorf("%w: %w", errors.ErrSubscription, err))
				}
				continue
			}
			if ctx.Err() == nil {
				onChange(snapshot)
			}
		}
	}
}

func drain(ch <-chan *redis.Message) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
}
