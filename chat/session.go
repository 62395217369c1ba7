// Package chat wires the components of one participant together.
package chat

import (
	"ai-live-chat/compose"
	"ai-live-chat/connection"
	"ai-live-chat/contract"
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"ai-live-chat/identity"
	"ai-live-chat/lifecycle"
	"ai-live-chat/presence"
	"ai-live-chat/ratelimit"
	"ai-live-chat/repositories"
	"context"
	"log/slog"
	"sync"
	"time"
)

type Deps struct {
	Store      contract.Store
	Clock      contract.Clock
	Identities repositories.IIdentityRepository
	Log        *slog.Logger
	// Random is optional, see identity.NewProvider.
	Random identity.Random
	// OnCompose receives the countdown events of the draft.
	OnCompose func(compose.Event)
}

// Receipt describes the outcome of Send.
type Receipt struct {
	ID         string
	RetryAfter time.Duration
}

type Session struct {
	cfg      Config
	clock    contract.Clock
	log      *slog.Logger
	status   *connection.Status
	identity *identity.Provider
	limiter  *ratelimit.Limiter
	compose  *compose.Engine
	messages *lifecycle.Manager
	presence *presence.Counter

	mu       sync.Mutex
	cancel   context.CancelFunc
	sweep    contract.Handle
	liveSets <-chan domain.LiveSet
	counts   <-chan int
}

func NewSession(deps Deps, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	status := connection.NewStatus(deps.Log)
	return &Session{
		cfg:      cfg,
		clock:    deps.Clock,
		log:      deps.Log,
		status:   status,
		identity: identity.NewProvider(deps.Identities, deps.Log, deps.Random),
		limiter:  ratelimit.NewLimiter(),
		compose:  compose.NewEngine(deps.Clock, cfg.compose(), deps.OnCompose),
		messages: lifecycle.NewManager(deps.Store, deps.Clock, status, deps.Log, cfg.lifecycle()),
		presence: presence.NewCounter(deps.Store, deps.Clock, status, deps.Log, cfg.presence()),
	}, nil
}

// Start subscribes to messages and presence, then announces the participant.
func (s *Session) Start(ctx context.Context) error {
	s.identity.EnsureIdentity()
	ctx, cancel := context.WithCancel(ctx)

	liveSets, err := s.messages.Observe(ctx)
	if err != nil {
		cancel()
		return err
	}
	counts, err := s.presence.ObserveCount(ctx)
	if err != nil {
		cancel()
		return err
	}
	if _, err := s.presence.Join(ctx); err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.liveSets = liveSets
	s.counts = counts
	if s.cfg.SweepInterval > 0 {
		s.sweep = s.clock.Every(s.cfg.SweepInterval, func() { s.sweepExpired(ctx) })
	}
	s.mu.Unlock()
	return nil
}

// Close leaves gracefully and releases every timer and subscription.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	cancel, sweep := s.cancel, s.sweep
	s.cancel, s.sweep = nil, nil
	s.mu.Unlock()

	if sweep != nil {
		sweep.Stop()
	}
	s.compose.Close()
	err := s.presence.Leave(ctx)
	if cancel != nil {
		cancel()
	}
	return err
}

func (s *Session) LiveSets() <-chan domain.LiveSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveSets
}

func (s *Session) OnlineCount() <-chan int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func (s *Session) Status() *connection.Status { return s.status }

func (s *Session) Identity() domain.Identity { return s.identity.EnsureIdentity() }

// ResetIdentity only affects messages sent afterwards.
func (s *Session) ResetIdentity() domain.Identity { return s.identity.ResetIdentity() }

func (s *Session) IsOwn(msg domain.Message) bool {
	return msg.AuthorID == s.identity.EnsureIdentity().UserID
}

// Type replaces the draft and returns what was kept of it.
func (s *Session) Type(text string) string { return s.compose.SetDraft(text) }

func (s *Session) Compose() compose.Session { return s.compose.Session() }

// Send publishes the draft. It fails with errors.ErrNotConnected while the
// store is unreachable and with errors.ErrCooldown, along with the wait in
// the receipt, inside the cooldown window. The draft is kept on failure.
func (s *Session) Send(ctx context.Context) (Receipt, error) {
	if !s.status.Connected() {
		return Receipt{}, errors.ErrNotConnected
	}
	now := s.clock.Now()
	decision := s.limiter.TryAcquire(now, s.cfg.Cooldown)
	if !decision.Allowed {
		return Receipt{RetryAfter: decision.RetryAfter}, errors.ErrCooldown
	}

	id, err := s.messages.Publish(ctx, s.compose.Session().Draft, s.identity.EnsureIdentity())
	if err != nil {
		return Receipt{}, err
	}
	s.limiter.Record(now)
	s.compose.Submit()
	return Receipt{ID: id}, nil
}

func (s *Session) sweepExpired(ctx context.Context) {
	removed, err := s.messages.SweepExpired(ctx)
	if err != nil {
		s.log.Warn("Sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.log.Debug("Expired messages swept", "count", removed)
	}
}
