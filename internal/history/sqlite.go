package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
)

// SQLiteStore keeps history in a local SQLite database. A single write
// connection in WAL mode is enough; history traffic is one read and one
// write per run.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the history database at
// dbPath and initializes its schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range allSchemaSQL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: failed to initialize schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func (s *SQLiteStore) LoadLatest(ctx context.Context) (int, *signature.ProjectSignature, error) {
	var version int
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT version, signature FROM schema_versions ORDER BY version DESC LIMIT 1",
	).Scan(&version, &payload)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("history: failed to load latest version: %w", err)
	}

	sig, err := decodePayload(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("history: version %d: %w", version, err)
	}
	return version, sig, nil
}

// Save stores sig as a new version unless it is structurally equal to
// the latest stored signature, in which case the current version number
// is returned unchanged.
func (s *SQLiteStore) Save(ctx context.Context, sig *signature.ProjectSignature) (int, error) {
	current, latest, err := s.LoadLatest(ctx)
	if err != nil {
		return 0, err
	}
	if latest != nil && latest.Equal(sig) {
		return current, nil
	}

	payload, fingerprint, err := encodePayload(sig)
	if err != nil {
		return 0, err
	}

	next := current + 1
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO schema_versions (version, fingerprint, signature, created_at) VALUES (?, ?, ?, ?)",
		next, fingerprint, payload, time.Now().Unix(),
	)
	if err != nil {
		return 0, errors.NewHistoryError(errors.CodeStoreFailed,
			fmt.Sprintf("failed to insert version %d", next), err)
	}
	return next, nil
}

func (s *SQLiteStore) GetVersion(ctx context.Context, version int) (*VersionRecord, error) {
	var fingerprint string
	var payload []byte
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT fingerprint, signature, created_at FROM schema_versions WHERE version = ?",
		version,
	).Scan(&fingerprint, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewHistoryError(errors.CodeVersionNotFound,
			fmt.Sprintf("version %d not found", version), nil).
			WithDetails(map[string]interface{}{"version": version})
	}
	if err != nil {
		return nil, fmt.Errorf("history: failed to get version %d: %w", version, err)
	}

	sig, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("history: version %d: %w", version, err)
	}
	return &VersionRecord{
		Version:     version,
		Signature:   sig,
		Fingerprint: fingerprint,
		CreatedAt:   time.Unix(createdAt, 0),
	}, nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context) ([]VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT version, fingerprint, signature, created_at FROM schema_versions ORDER BY version ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list versions: %w", err)
	}
	defer rows.Close()

	var records []VersionRecord
	for rows.Next() {
		var version int
		var fingerprint string
		var payload []byte
		var createdAt int64

		if err := rows.Scan(&version, &fingerprint, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("history: failed to scan version: %w", err)
		}
		sig, err := decodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("history: version %d: %w", version, err)
		}
		records = append(records, VersionRecord{
			Version:     version,
			Signature:   sig,
			Fingerprint: fingerprint,
			CreatedAt:   time.Unix(createdAt, 0),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: error iterating versions: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) RecordApplied(ctx context.Context, app, label string, version int) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO evolutions (app, label, version, applied_at) VALUES (?, ?, ?, ?)",
		app, label, version, time.Now().Unix(),
	)
	if err != nil {
		return errors.NewHistoryError(errors.CodeStoreFailed,
			fmt.Sprintf("failed to record evolution %s/%s", app, label), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Printf("[WARN] history: evolution %s/%s already recorded", app, label)
	}
	return nil
}

func (s *SQLiteStore) AppliedLabels(ctx context.Context, app string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT label FROM evolutions WHERE app = ? ORDER BY id ASC", app,
	)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list applied evolutions for %s: %w", app, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("history: failed to scan evolution label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: error iterating evolutions: %w", err)
	}
	return labels, nil
}

func (s *SQLiteStore) IsApplied(ctx context.Context, app, label string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM evolutions WHERE app = ? AND label = ?", app, label,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("history: failed to check evolution %s/%s: %w", app, label, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: failed to close database: %w", err)
	}
	return nil
}

// encodePayload serializes and compresses a signature for storage,
// returning the payload and its fingerprint.
func encodePayload(sig *signature.ProjectSignature) ([]byte, string, error) {
	raw, err := sig.Serialize()
	if err != nil {
		return nil, "", fmt.Errorf("history: failed to serialize signature: %w", err)
	}
	fingerprint, err := sig.Fingerprint()
	if err != nil {
		return nil, "", fmt.Errorf("history: failed to fingerprint signature: %w", err)
	}
	return snappy.Encode(nil, raw), fingerprint, nil
}

func decodePayload(payload []byte) (*signature.ProjectSignature, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress signature: %w", err)
	}
	sig, err := signature.Deserialize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	return sig, nil
}
