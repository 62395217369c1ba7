package repositories

import (
	"ai-live-chat/domain"
	"ai-live-chat/errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestIdentityRepository_SaveLoadClear(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewIdentityRepository(db)

	// Given nothing persisted yet
	_, err = repository.Load()
	req.ErrorIs(err, errors.ErrNotFound)

	// When saving an identity
	identity := domain.Identity{UserID: "k3j4h5g6f", DisplayName: "Quokka42"}
	req.NoError(repository.Save(identity))

	// Then it is read back, stored under the fixed key
	loaded, err := repository.Load()
	req.NoError(err)
	req.Equal(identity, loaded)
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("chatUser"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			req.JSONEq(`{"id":"k3j4h5g6f","username":"Quokka42"}`, string(val))
			return nil
		})
	})
	req.NoError(err)

	// When clearing
	req.NoError(repository.Clear())
	_, err = repository.Load()
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestIdentityRepository_CorruptedRecord(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(domain.IdentityKey), []byte("{broken"))
	}))

	_, err = NewIdentityRepository(db).Load()
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func TestMemoryIdentityRepository(t *testing.T) {
	req := require.New(t)
	repository := NewMemoryIdentityRepository()

	_, err := repository.Load()
	req.ErrorIs(err, errors.ErrNotFound)

	req.NoError(repository.Save(domain.Identity{UserID: "a", DisplayName: "Okapi1"}))
	loaded, err := repository.Load()
	req.NoError(err)
	req.Equal("Okapi1", loaded.DisplayName)

	req.NoError(repository.Clear())
	_, err = repository.Load()
	req.ErrorIs(err, errors.ErrNotFound)
}
