//go:build integration
// +build integration

package history

import (
	"context"
	"os"
	"testing"
)

// Exercises the Postgres store against a live database. Run with:
//
//	EVOLVE_TEST_POSTGRES_URL=postgres://... go test -tags integration ./internal/history
func TestPostgresStore(t *testing.T) {
	connString := os.Getenv("EVOLVE_TEST_POSTGRES_URL")
	if connString == "" {
		t.Skip("EVOLVE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer store.Close()

	// Start from a clean slate; the tables are shared between runs.
	if _, err := store.conn.Exec(ctx, "DELETE FROM evolutions"); err != nil {
		t.Fatalf("failed to clear evolutions: %v", err)
	}
	if _, err := store.conn.Exec(ctx, "DELETE FROM schema_versions"); err != nil {
		t.Fatalf("failed to clear schema_versions: %v", err)
	}

	version, sig, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest on empty store failed: %v", err)
	}
	if version != 0 || sig != nil {
		t.Fatalf("empty store: got version %d, want 0", version)
	}

	v1, err := store.Save(ctx, testSignature(""))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if v1 != 1 {
		t.Errorf("first save: version %d, want 1", v1)
	}
	if again, _ := store.Save(ctx, testSignature("")); again != 1 {
		t.Errorf("unchanged save: version %d, want 1", again)
	}
	if v2, _ := store.Save(ctx, testSignature("bio")); v2 != 2 {
		t.Errorf("changed save: version %d, want 2", v2)
	}

	version, got, err := store.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if version != 2 || !got.Equal(testSignature("bio")) {
		t.Error("loaded signature does not match last save")
	}

	if err := store.RecordApplied(ctx, "books", "0001_initial", 2); err != nil {
		t.Fatalf("RecordApplied failed: %v", err)
	}
	if err := store.RecordApplied(ctx, "books", "0001_initial", 2); err != nil {
		t.Fatalf("duplicate RecordApplied failed: %v", err)
	}
	labels, err := store.AppliedLabels(ctx, "books")
	if err != nil {
		t.Fatalf("AppliedLabels failed: %v", err)
	}
	if len(labels) != 1 || labels[0] != "0001_initial" {
		t.Errorf("labels = %v, want [0001_initial]", labels)
	}
	applied, err := store.IsApplied(ctx, "books", "0001_initial")
	if err != nil || !applied {
		t.Errorf("IsApplied = %v, %v, want true", applied, err)
	}
}
