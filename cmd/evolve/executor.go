package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/evolvedb/evolve/internal/config"
)

// openDatabase connects to the target database the generated
// statements run against.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open target database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}
	return db, nil
}

// statementExecutor runs statements one at a time in autocommit mode.
// A failure leaves earlier statements applied; recovery works from the
// run report, which names the statement that stopped the run.
type statementExecutor struct {
	db *sql.DB
}

func (e *statementExecutor) ExecuteStatement(ctx context.Context, statement string) error {
	_, err := e.db.ExecContext(ctx, statement)
	return err
}
