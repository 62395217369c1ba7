//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Snapshot is the full content of a collection: store id -> encoded record.
type Snapshot map[string][]byte

// Store is the realtime shared store every participant talks to.
// Any backend (in-process, badger, redis, the websocket relay) satisfies it.
// Implementations must deliver an initial snapshot on Subscribe and a full
// snapshot after every mutation of the collection.
type Store interface {
	// Push appends a record and returns the id assigned by the store.
	Push(ctx context.Context, collection string, record []byte) (string, error)
	// Set writes a record under a caller chosen id.
	Set(ctx context.Context, collection, id string, record []byte) error
	// Remove deletes a record. Removing a missing record is not an error.
	Remove(ctx context.Context, collection, id string) error
	// List returns the current snapshot once.
	List(ctx context.Context, collection string) (Snapshot, error)
	Subscribe(ctx context.Context, collection string, onChange func(Snapshot), onError func(error)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}

// DisconnectRemover is implemented by stores able to remove a record on
// their own when the connection of the registering session drops.
type DisconnectRemover interface {
	OnDisconnectRemove(ctx context.Context, collection, id string) error
}

// Clock owns every timer of the system so teardown stays deterministic.
type Clock interface {
	Now() time.Time
	// Every calls fn each period until the handle is stopped.
	Every(period time.Duration, fn func()) Handle
	// AfterFunc calls fn once after d unless the handle is stopped first.
	AfterFunc(d time.Duration, fn func()) Handle
}

type Handle interface {
	Stop()
}
