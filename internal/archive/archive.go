// Package archive writes applied signature snapshots and run reports
// to object storage, local or S3.
package archive

import (
	"context"
)

// ObjectStore abstracts the object storage operations archival needs.
// Payloads are small serialized documents, so the interface works on
// byte slices rather than files.
type ObjectStore interface {
	// Put stores data under objectPath, overwriting any existing
	// object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get retrieves the object at objectPath. A missing object yields
	// a storage error with the object-not-found code.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, objectPath string) error
}
