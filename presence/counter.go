// Package presence keeps this session's presence record and counts the
// participants online.
//
// Stores able to remove a record when its connection drops get the record
// registered for removal. Other stores fall back to a heartbeat: the record
// is rewritten every HeartbeatInterval and records older than Staleness are
// ignored and removed by any observer.
package presence

import (
	"ai-live-chat/connection"
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	HeartbeatInterval time.Duration `validate:"gt=0"`
	Staleness         time.Duration `validate:"gtfield=HeartbeatInterval"`
}

// DefaultConfig tolerates two missed heartbeats.
func DefaultConfig() Config {
	return Config{HeartbeatInterval: 5 * time.Second, Staleness: 15 * time.Second}
}

type Counter struct {
	store  contract.Store
	clock  contract.Clock
	status *connection.Status
	log    *slog.Logger
	cfg    Config

	mu        sync.Mutex
	record    *domain.PresenceRecord
	heartbeat contract.Handle
}

func NewCounter(store contract.Store, clock contract.Clock, status *connection.Status, log *slog.Logger, cfg Config) *Counter {
	return &Counter{store: store, clock: clock, status: status, log: log, cfg: cfg}
}

// HeartbeatMode reports whether the store lacks a disconnect hook.
func (c *Counter) HeartbeatMode() bool {
	_, ok := c.store.(contract.DisconnectRemover)
	return !ok
}

// Join writes a fresh presence record. Joining twice keeps the first record.
// When the store cannot register the record for removal, nothing is written.
func (c *Counter) Join(ctx context.Context) (domain.PresenceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record != nil {
		return *c.record, nil
	}

	record := domain.NewPresenceRecord(uuid.NewString(), c.clock.Now())
	// The removal is registered before the record exists, so no drop can
	// leave a written record without one.
	remover, hooked := c.store.(contract.DisconnectRemover)
	if hooked {
		if err := remover.OnDisconnectRemove(ctx, domain.PresenceCollection, record.SessionID); err != nil {
			c.status.MarkDisconnected(err)
			return domain.PresenceRecord{}, fmt.Errorf("%w: presence removal not registered: %w", errors.ErrStoreUnavailable, err)
		}
	}
	if err := c.write(ctx, record); err != nil {
		return domain.PresenceRecord{}, err
	}
	c.record = &record
	if !hooked {
		c.heartbeat = c.clock.Every(c.cfg.HeartbeatInterval, c.beat)
	}
	c.log.Debug("Presence joined", "session_id", record.SessionID, "heartbeat", c.HeartbeatMode())
	return record, nil
}

// Leave removes the record on a graceful exit.
func (c *Counter) Leave(ctx context.Context) error {
	c.mu.Lock()
	record := c.record
	c.record = nil
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	c.mu.Unlock()

	if record == nil {
		return nil
	}
	if err := c.store.Remove(ctx, domain.PresenceCollection, record.SessionID); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return nil
}

// SessionID is empty until Join succeeded.
func (c *Counter) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record == nil {
		return ""
	}
	return c.record.SessionID
}

func (c *Counter) beat() {
	c.mu.Lock()
	if c.record == nil {
		c.mu.Unlock()
		return
	}
	c.record.LastSeen = c.clock.Now()
	record := *c.record
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HeartbeatInterval)
	defer cancel()
	if err := c.write(ctx, record); err != nil {
		c.log.Warn("Presence heartbeat failed", "session_id", record.SessionID, "error", err)
	}
}

func (c *Counter) write(ctx context.Context, record domain.PresenceRecord) error {
	data, err := domain.EncodePresence(record)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, domain.PresenceCollection, record.SessionID, data); err != nil {
		c.status.MarkDisconnected(err)
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return nil
}

// ObserveCount emits the number of online participants each time it changes,
// never less than 1. The channel closes once ctx is done.
func (c *Counter) ObserveCount(ctx context.Context) (<-chan int, error) {
	obs := &countObserver{counter: c, ctx: ctx, last: -1, out: make(chan int, 1)}

	sub, err := c.store.Subscribe(ctx, domain.PresenceCollection, obs.onChange, obs.onError)
	if err != nil {
		c.status.MarkDisconnected(err)
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	var handle contract.Handle
	if c.HeartbeatMode() {
		handle = c.clock.Every(c.cfg.HeartbeatInterval, obs.refresh)
	}

	context.AfterFunc(ctx, func() {
		sub.Unsubscribe()
		if handle != nil {
			handle.Stop()
		}
		obs.close()
	})
	return obs.out, nil
}
