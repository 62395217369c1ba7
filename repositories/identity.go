//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=../mocks/mock_identity_repository.go -package=mocks
package repositories

import (
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// IIdentityRepository keeps the identity of the local session between runs.
type IIdentityRepository interface {
	// Load returns errors.ErrNotFound when nothing was saved yet.
	Load() (domain.Identity, error)
	Save(identity domain.Identity) error
	Clear() error
}

type IdentityRepository struct {
	db *badger.DB
}

func NewIdentityRepository(db *badger.DB) IIdentityRepository {
	return &IdentityRepository{db: db}
}

// Save writes the identity as JSON {id, username} under the chatUser key.
func (r IdentityRepository) Save(identity domain.Identity) error {
	data, err := domain.EncodeIdentity(identity)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(domain.IdentityKey), data)
	})
}

func (r IdentityRepository) Load() (domain.Identity, error) {
	var identity domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(domain.IdentityKey))
		if err == badger.ErrKeyNotFound {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			identity, err = domain.DecodeIdentity(val)
			return err
		})
	})
	return identity, err
}

func (r IdentityRepository) Clear() error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(domain.IdentityKey))
	})
}

// MemoryIdentityRepository lives as long as the process.
type MemoryIdentityRepository struct {
	mu       sync.Mutex
	identity *domain.Identity
}

func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{}
}

func (r *MemoryIdentityRepository) Load() (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identity == nil {
		return domain.Identity{}, errors.ErrNotFound
	}
	return *r.identity, nil
}

func (r *MemoryIdentityRepository) Save(identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identity = &identity
	return nil
}

func (r *MemoryIdentityRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identity = nil
	return nil
}
