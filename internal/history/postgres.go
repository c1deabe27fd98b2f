package history

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
)

// Postgres DDL differs from the SQLite schema only in the evolutions id
// column (BIGSERIAL) and the payload type (BYTEA).
const pgCreateVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version BIGINT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    signature BYTEA NOT NULL,
    created_at BIGINT NOT NULL
)`

const pgCreateEvolutionsTableSQL = `
CREATE TABLE IF NOT EXISTS evolutions (
    id BIGSERIAL PRIMARY KEY,
    app TEXT NOT NULL,
    label TEXT NOT NULL,
    version BIGINT NOT NULL,
    applied_at BIGINT NOT NULL,
    UNIQUE (app, label)
)`

const pgCreateEvolutionsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_evolutions_app ON evolutions(app)`

// PostgresStore keeps history in PostgreSQL over a single pgx
// connection. Runs are serialized externally, so one connection is
// enough and there is no pool.
type PostgresStore struct {
	conn *pgx.Conn
}

// NewPostgresStore connects to connString and initializes the history
// schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("history: failed to connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("history: failed to ping postgres: %w", err)
	}

	ddl := []string{pgCreateVersionsTableSQL, pgCreateEvolutionsTableSQL, pgCreateEvolutionsIndexSQL}
	for _, stmt := range ddl {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("history: failed to initialize schema: %w", err)
		}
	}

	return &PostgresStore{conn: conn}, nil
}

func (s *PostgresStore) LoadLatest(ctx context.Context) (int, *signature.ProjectSignature, error) {
	var version int
	var payload []byte
	err := s.conn.QueryRow(ctx,
		"SELECT version, signature FROM schema_versions ORDER BY version DESC LIMIT 1",
	).Scan(&version, &payload)
	if err == pgx.ErrNoRows {
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

func (s *PostgresStore) Save(ctx context.Context, sig *signature.ProjectSignature) (int, error) {
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
	_, err = s.conn.Exec(ctx,
		"INSERT INTO schema_versions (version, fingerprint, signature, created_at) VALUES ($1, $2, $3, $4)",
		next, fingerprint, payload, time.Now().Unix(),
	)
	if err != nil {
		return 0, errors.NewHistoryError(errors.CodeStoreFailed,
			fmt.Sprintf("failed to insert version %d", next), err)
	}
	return next, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, version int) (*VersionRecord, error) {
	var fingerprint string
	var payload []byte
	var createdAt int64

	err := s.conn.QueryRow(ctx,
		"SELECT fingerprint, signature, created_at FROM schema_versions WHERE version = $1",
		version,
	).Scan(&fingerprint, &payload, &createdAt)
	if err == pgx.ErrNoRows {
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

func (s *PostgresStore) ListVersions(ctx context.Context) ([]VersionRecord, error) {
	rows, err := s.conn.Query(ctx,
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

func (s *PostgresStore) RecordApplied(ctx context.Context, app, label string, version int) error {
	tag, err := s.conn.Exec(ctx,
		"INSERT INTO evolutions (app, label, version, applied_at) VALUES ($1, $2, $3, $4) ON CONFLICT (app, label) DO NOTHING",
		app, label, version, time.Now().Unix(),
	)
	if err != nil {
		return errors.NewHistoryError(errors.CodeStoreFailed,
			fmt.Sprintf("failed to record evolution %s/%s", app, label), err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[WARN] history: evolution %s/%s already recorded", app, label)
	}
	return nil
}

func (s *PostgresStore) AppliedLabels(ctx context.Context, app string) ([]string, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT label FROM evolutions WHERE app = $1 ORDER BY id ASC", app,
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

func (s *PostgresStore) IsApplied(ctx context.Context, app, label string) (bool, error) {
	var n int
	err := s.conn.QueryRow(ctx,
		"SELECT COUNT(1) FROM evolutions WHERE app = $1 AND label = $2", app, label,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("history: failed to check evolution %s/%s: %w", app, label, err)
	}
	return n > 0, nil
}

func (s *PostgresStore) Close() error {
	if err := s.conn.Close(context.Background()); err != nil {
		return fmt.Errorf("history: failed to close connection: %w", err)
	}
	return nil
}
