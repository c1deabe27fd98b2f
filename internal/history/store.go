// Package history persists applied schema versions and the evolution
// batches that produced them. A version row holds a full serialized
// project signature; evolution rows record which (app, label) batches
// have been applied and at which version.
package history

import (
	"context"
	"time"

	"github.com/evolvedb/evolve/internal/signature"
)

// VersionRecord is one stored signature snapshot.
type VersionRecord struct {
	Version     int
	Signature   *signature.ProjectSignature
	Fingerprint string
	CreatedAt   time.Time
}

// AppliedRecord marks one evolution batch as applied.
type AppliedRecord struct {
	App       string
	Label     string
	Version   int
	AppliedAt time.Time
}

// Store is the applied-version persistence interface the evolver
// consumes. The evolver reads it once per run at load time and writes
// it once after execution; serializing concurrent runs is the caller's
// responsibility.
type Store interface {
	// LoadLatest returns the most recent version and its signature.
	// An empty store returns (0, nil, nil).
	LoadLatest(ctx context.Context) (int, *signature.ProjectSignature, error)

	// Save stores the signature as a new version. If the signature is
	// structurally equal to the latest stored one, the existing version
	// number is returned and nothing is written.
	Save(ctx context.Context, sig *signature.ProjectSignature) (int, error)

	// GetVersion retrieves one stored version.
	GetVersion(ctx context.Context, version int) (*VersionRecord, error)

	// ListVersions returns all stored versions in ascending order.
	ListVersions(ctx context.Context) ([]VersionRecord, error)

	// RecordApplied marks an (app, label) batch as applied at a version.
	// Recording the same batch twice is a no-op.
	RecordApplied(ctx context.Context, app, label string, version int) error

	// AppliedLabels returns the labels recorded for an app, in the
	// order they were applied.
	AppliedLabels(ctx context.Context, app string) ([]string, error)

	// IsApplied reports whether an (app, label) batch has been recorded.
	IsApplied(ctx context.Context, app, label string) (bool, error)

	Close() error
}
