// Package identity issues the disposable (userId, displayName) pair of a session.
package identity

import (
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"ai-live-chat/repositories"
	goerrors "errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

const (
	userIDLength = 9
	maxSuffix    = 1000
	base36       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Random is the source names and ids are drawn from.
type Random interface {
	IntN(n int) int
}

// Provider never fails: persistence errors are logged and the identity is
// still returned for the current session.
type Provider struct {
	mu      sync.Mutex
	repo    repositories.IIdentityRepository
	log     *slog.Logger
	rnd     Random
	current *domain.Identity
}

// NewProvider uses a process random source when rnd is nil.
func NewProvider(repo repositories.IIdentityRepository, log *slog.Logger, rnd Random) *Provider {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Provider{repo: repo, log: log, rnd: rnd}
}

// EnsureIdentity returns the identity already issued, or issues one.
func (p *Provider) EnsureIdentity() domain.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return *p.current
	}

	identity, err := p.repo.Load()
	switch {
	case err == nil:
		p.current = &identity
		return identity
	case goerrors.Is(err, errors.ErrNotFound):
	default:
		p.log.Warn("Unable to load identity, issuing a new one", "error", err)
	}
	return p.issueLocked()
}

// ResetIdentity discards the current association. Messages already sent keep
// the author they were tagged with.
func (p *Provider) ResetIdentity() domain.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueLocked()
}

func (p *Provider) issueLocked() domain.Identity {
	identity := domain.Identity{UserID: p.userID(), DisplayName: p.displayName()}
	if err := p.repo.Save(identity); err != nil {
		p.log.Warn("Unable to persist identity", "error", err)
	}
	p.current = &identity
	p.log.Debug("Identity issued", "user_id", identity.UserID, "name", identity.DisplayName)
	return identity
}

func (p *Provider) displayName() string {
	name := animals[p.rnd.IntN(len(animals))]
	return name + strconv.Itoa(p.rnd.IntN(maxSuffix))
}

func (p *Provider) userID() string {
	var b strings.Builder
	b.Grow(userIDLength)
	for i := 0; i < userIDLength; i++ {
		b.WriteByte(base36[p.rnd.IntN(len(base36))])
	}
	return b.String()
}
