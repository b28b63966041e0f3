// Package db provides the PostgreSQL persistence layer for crawled
// repository metadata.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // required PostgreSQL driver

	"ghcrawler.bearhuddleston/internal/logger"
	"ghcrawler.bearhuddleston/internal/models"
)

const createSchema = `CREATE SCHEMA IF NOT EXISTS github;`

const createRepositoryTable = `
CREATE TABLE IF NOT EXISTS github.repository (
	repository_name   TEXT NOT NULL,
	organization_name TEXT NOT NULL,
	total_stars       INTEGER NOT NULL,
	PRIMARY KEY (repository_name, organization_name)
);`

// upsertRepository reports through the xmax system column whether the row
// was newly inserted (true) or updated in place (false).
const upsertRepository = `
INSERT INTO github.repository (repository_name, organization_name, total_stars)
VALUES ($1, $2, $3)
ON CONFLICT (repository_name, organization_name) DO UPDATE
	SET total_stars = EXCLUDED.total_stars
RETURNING (xmax = 0) AS inserted;`

// Persister stores repository metadata in PostgreSQL.
type Persister struct {
	db         *sql.DB
	upsertStmt *sql.Stmt
	log        *logger.Logger
}

// New opens a connection pool against the given connection string and
// bootstraps the schema.
func New(connectionString string, log *logger.Logger) (*Persister, error) {
	pool, err := sql.Open("pgx", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)

	if err := createTables(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	upsertStmt, err := pool.Prepare(upsertRepository)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("preparing upsert statement: %w", err)
	}
	return &Persister{db: pool, upsertStmt: upsertStmt, log: log}, nil
}

func createTables(pool *sql.DB) error {
	if _, err := pool.Exec(createSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := pool.Exec(createRepositoryTable); err != nil {
		return fmt.Errorf("creating repository table: %w", err)
	}
	return nil
}

// Persist upserts the batch row by row and returns the count of rows that
// were newly inserted; rows that only refreshed an existing pair do not
// count.
func (p *Persister) Persist(ctx context.Context, repositories []models.Repository) (uint32, error) {
	var totalInserted uint32
	for _, repository := range repositories {
		var inserted bool
		err := p.upsertStmt.QueryRowContext(ctx,
			repository.RepositoryName,
			repository.OrganizationName,
			int32(repository.TotalStars),
		).Scan(&inserted)
		if err != nil {
			return totalInserted, fmt.Errorf("upserting %s: %w", repository, err)
		}
		if inserted {
			totalInserted++
			p.log.Debug("Inserted %s", repository)
		} else {
			p.log.Debug("Updated %s", repository)
		}
	}
	return totalInserted, nil
}

// Close releases the prepared statement and the connection pool.
func (p *Persister) Close() error {
	var closeErr error
	if p.upsertStmt != nil {
		if err := p.upsertStmt.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("closing upsert statement: %w", err))
		}
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("closing database: %w", err))
		}
	}
	return closeErr
}
