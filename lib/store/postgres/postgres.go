// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/tarancss/adoption/lib/store"
)

const schema = `CREATE TABLE IF NOT EXISTS artifacts (
	name       TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection' and makes sure the artifacts
// table exists.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("cannot create artifacts table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// SaveArtifact inserts the artifact or replaces the one with the same contract name.
func (p *Postgres) SaveArtifact(a store.Artifact) error {
	if a.Name == "" {
		return store.ErrNoName
	}

	if a.Updated.IsZero() {
		a.Updated = time.Now().UTC()
	}

	_, err := p.db.Exec(`INSERT INTO artifacts (name, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		a.Name, a.Data, a.Updated)
	if err != nil {
		return fmt.Errorf("could not save artifact %s in db: %w", a.Name, err)
	}

	return nil
}

// LoadArtifact loads from db the artifact of the named contract.
func (p *Postgres) LoadArtifact(name string) (a store.Artifact, err error) {
	err = p.db.QueryRow(`SELECT name, data, updated_at FROM artifacts WHERE name = $1`, name).
		Scan(&a.Name, &a.Data, &a.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		err = store.ErrDataNotFound
	}

	return
}

// DeleteArtifact deletes from db the artifact of the named contract.
func (p *Postgres) DeleteArtifact(name string) (err error) {
	_, err = p.db.Exec(`DELETE FROM artifacts WHERE name = $1`, name)

	return
}
