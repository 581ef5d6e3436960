package storage

import (
	"context"
	"errors"
)

/*
The storage provider interface describes the minimal set of operations the
engine requires from persistent storage. The only concurrency-control primitive
in the system is PutIfAbsent: an atomic create-if-absent write that either
makes the full object visible or leaves no trace. The transaction log builds
its optimistic commit protocol entirely on top of it.

Listing is lexicographic, which together with fixed-width zero-padded version
names gives numeric ordering of log files for free.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when an object is not found.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectExists is returned by PutIfAbsent when the target object already
// exists.
var ErrObjectExists = errors.New("object already exists")

// Provider is the interface for a storage provider.
type Provider interface {
	// Put stores an object, overwriting any existing object with the same ID.
	Put(ctx context.Context, id string, data []byte) error

	// PutIfAbsent stores an object only if no object with the same ID exists.
	// The write is all-or-nothing: concurrent readers never observe a partial
	// object, and exactly one of any set of concurrent writers to the same ID
	// succeeds. Returns ErrObjectExists on collision.
	PutIfAbsent(ctx context.Context, id string, data []byte) error

	// Get retrieves an object. Returns ErrObjectNotFound if it does not exist.
	Get(ctx context.Context, id string) ([]byte, error)

	// List returns the IDs of all objects with the given prefix, in
	// lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object. Deleting a nonexistent object is not an error.
	Delete(ctx context.Context, id string) error
}
