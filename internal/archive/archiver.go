package archive

import (
	"context"
	"fmt"

	"github.com/golang/snappy"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
)

const (
	snapshotPrefix = "signatures/"
	runPrefix      = "runs/"
)

// Archiver writes signature snapshots and run reports to an object
// store. Snapshots are snappy-compressed serialized signatures keyed by
// version; run reports are stored as-is under their run ID.
type Archiver struct {
	store ObjectStore
}

// NewArchiver creates an archiver on top of the given object store.
func NewArchiver(store ObjectStore) *Archiver {
	return &Archiver{store: store}
}

func snapshotPath(version int) string {
	return fmt.Sprintf("%sv%06d.json.sz", snapshotPrefix, version)
}

func runPath(runID string) string {
	return fmt.Sprintf("%s%s.json", runPrefix, runID)
}

// ArchiveSnapshot stores the signature saved as the given version.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, version int, sig *signature.ProjectSignature) error {
	data, err := sig.Serialize()
	if err != nil {
		return fmt.Errorf("archive: failed to serialize snapshot: %w", err)
	}
	return a.store.Put(ctx, snapshotPath(version), snappy.Encode(nil, data))
}

// ArchiveRunReport stores a marshaled run report under its run ID.
func (a *Archiver) ArchiveRunReport(ctx context.Context, runID string, report []byte) error {
	return a.store.Put(ctx, runPath(runID), report)
}

// LoadSnapshot retrieves and decodes the snapshot for a version.
func (a *Archiver) LoadSnapshot(ctx context.Context, version int) (*signature.ProjectSignature, error) {
	compressed, err := a.store.Get(ctx, snapshotPath(version))
	if err != nil {
		return nil, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("failed to decompress snapshot for version %d", version), err)
	}
	return signature.Deserialize(data)
}

// LoadRunReport retrieves the raw report stored for a run ID.
func (a *Archiver) LoadRunReport(ctx context.Context, runID string) ([]byte, error) {
	return a.store.Get(ctx, runPath(runID))
}

// ListSnapshots returns the object paths of all archived snapshots in
// version order.
func (a *Archiver) ListSnapshots(ctx context.Context) ([]string, error) {
	return a.store.List(ctx, snapshotPrefix)
}

// ListRunReports returns the object paths of all archived run reports.
func (a *Archiver) ListRunReports(ctx context.Context) ([]string, error) {
	return a.store.List(ctx, runPrefix)
}
