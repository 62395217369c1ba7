// Package lifecycle publishes messages and derives the live, time filtered
// view every participant renders.
package lifecycle

import (
	"ai-live-chat/connection"
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	TTL             time.Duration `validate:"gt=0"`
	RefreshInterval time.Duration `validate:"gt=0"`
	MaxLength       int           `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		TTL:             domain.DefaultTTL,
		RefreshInterval: 100 * time.Millisecond,
		MaxLength:       domain.MaxMessageLength,
	}
}

type Manager struct {
	store    contract.Store
	clock    contract.Clock
	status   *connection.Status
	log      *slog.Logger
	validate *validator.Validate
	cfg      Config
}

func NewManager(store contract.Store, clock contract.Clock, status *connection.Status, log *slog.Logger, cfg Config) *Manager {
	return &Manager{
		store:    store,
		clock:    clock,
		status:   status,
		log:      log,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// Publish validates the trimmed text and writes the message.
// Rejected text never reaches the store. A failed write is not retried.
func (m *Manager) Publish(ctx context.Context, text string, author domain.Identity) (string, error) {
	text = strings.TrimSpace(text)
	if err := m.check(text); err != nil {
		return "", err
	}

	msg := domain.NewMessage(text, author, m.clock.Now(), m.cfg.TTL)
	record, err := domain.EncodeMessage(msg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrRejected, err)
	}

	id, err := m.store.Push(ctx, domain.MessagesCollection, record)
	if err != nil {
		m.status.MarkDisconnected(err)
		return "", fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	m.log.Debug("Message published", "id", id, "author", author.DisplayName)
	return id, nil
}

func (m *Manager) check(text string) error {
	rule := fmt.Sprintf("required,max=%d", m.cfg.MaxLength)
	err := m.validate.Var(text, rule)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if goerrors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "max" {
		return errors.ErrMessageTooLong
	}
	return errors.ErrEmptyMessage
}

// Observe streams the live set until ctx is done, then closes the channel.
// The channel holds only the latest set: a slow reader skips intermediate
// ones. Each call is an independent subscription.
func (m *Manager) Observe(ctx context.Context) (<-chan domain.LiveSet, error) {
	obs := &observer{manager: m, out: make(chan domain.LiveSet, 1)}

	sub, err := m.store.Subscribe(ctx, domain.MessagesCollection, obs.onChange, obs.onError)
	if err != nil {
		m.status.MarkDisconnected(err)
		return nil, fmt.Errorf("%w: %w", errors.ErrSubscription, err)
	}
	handle := m.clock.Every(m.cfg.RefreshInterval, obs.refresh)

	context.AfterFunc(ctx, func() {
		sub.Unsubscribe()
		handle.Stop()
		obs.close()
	})
	return obs.out, nil
}

// SweepExpired removes the expired messages still in the store, along with
// records that do not decode, and returns how many it removed. Records
// already gone count as removed.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	snapshot, err := m.store.List(ctx, domain.MessagesCollection)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}

	now := m.clock.Now()
	removed := 0
	var errs []error
	for id, record := range snapshot {
		msg, err := domain.DecodeMessage(id, record)
		if err != nil {
			// never rendered and never expiring, it would stay forever
			m.log.Warn("Removing malformed message", "id", id, "error", err)
		} else if msg.IsLive(now) {
			continue
		}
		if err := m.store.Remove(ctx, domain.MessagesCollection, id); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, goerrors.Join(errs...))
	}
	return removed, nil
}
