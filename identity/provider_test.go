package identity

import (
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"ai-live-chat/mocks"
	"ai-live-chat/repositories"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var userIDPattern = regexp.MustCompile(`^[0-9a-z]{9}$`)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestProvider_EnsureIdentityIsStable(t *testing.T) {
	req := require.New(t)
	repo := repositories.NewMemoryIdentityRepository()
	provider := NewProvider(repo, slog.Default(), seeded())

	first := provider.EnsureIdentity()
	second := provider.EnsureIdentity()

	req.Equal(first, second)
	req.Regexp(userIDPattern, first.UserID)
	persisted, err := repo.Load()
	req.NoError(err)
	req.Equal(first, persisted)
}

func TestProvider_NameComesFromPool(t *testing.T) {
	req := require.New(t)
	provider := NewProvider(repositories.NewMemoryIdentityRepository(), slog.Default(), seeded())

	for i := 0; i < 50; i++ {
		name := provider.ResetIdentity().DisplayName
		suffix := strings.TrimLeft(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz -")
		base := strings.TrimSuffix(name, suffix)
		req.Contains(animals, base, name)
		var n int
		_, err := fmt.Sscanf(suffix, "%d", &n)
		req.NoError(err)
		req.GreaterOrEqual(n, 0)
		req.Less(n, 1000)
	}
}

func TestProvider_ReusesPersistedIdentity(t *testing.T) {
	req := require.New(t)
	repo := repositories.NewMemoryIdentityRepository()
	stored := domain.Identity{UserID: "u1", DisplayName: "Quokka42"}
	req.NoError(repo.Save(stored))

	provider := NewProvider(repo, slog.Default(), seeded())

	req.Equal(stored, provider.EnsureIdentity())
}

func TestProvider_ResetIssuesNewIdentity(t *testing.T) {
	req := require.New(t)
	repo := repositories.NewMemoryIdentityRepository()
	provider := NewProvider(repo, slog.Default(), seeded())
	first := provider.EnsureIdentity()

	reset := provider.ResetIdentity()

	req.NotEqual(first.UserID, reset.UserID)
	req.Equal(reset, provider.EnsureIdentity())
	persisted, err := repo.Load()
	req.NoError(err)
	req.Equal(reset, persisted)
}

func TestProvider_PersistenceFailureIsNotFatal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIIdentityRepository(ctrl)

	// Given a repository that can neither read nor write
	repo.EXPECT().Load().Return(domain.Identity{}, errors.ErrInvalidPayload).Times(1)
	repo.EXPECT().Save(gomock.Any()).Return(fmt.Errorf("disk full")).Times(1)

	provider := NewProvider(repo, slog.Default(), seeded())

	// Then an identity is still issued and kept in memory
	identity := provider.EnsureIdentity()
	req.False(identity.IsZero())
	req.Equal(identity, provider.EnsureIdentity())
}
