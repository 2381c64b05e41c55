package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:assessment.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/assessment?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema is exported so sqlite-backed tests can build the same tables
// the gateway runs against.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'USER'
);

CREATE TABLE IF NOT EXISTS exam_states (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  form_id TEXT NOT NULL,
  attempt_token TEXT NOT NULL,
  started_at INTEGER,
  locked INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  UNIQUE (user_id, form_id)
);

CREATE TABLE IF NOT EXISTS responses (
  id TEXT PRIMARY KEY,
  form_id TEXT NOT NULL,
  user_id TEXT REFERENCES users(id),
  name TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  total_score REAL NOT NULL,
  max_score REAL NOT NULL,
  percent REAL NOT NULL,
  level TEXT NOT NULL,
  tip TEXT NOT NULL,
  answers_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_responses_form_created
  ON responses (form_id, created_at DESC);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'USER'
);

CREATE TABLE IF NOT EXISTS exam_states (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  form_id TEXT NOT NULL,
  attempt_token TEXT NOT NULL,
  started_at BIGINT,
  locked BOOLEAN NOT NULL DEFAULT FALSE,
  updated_at BIGINT NOT NULL,
  UNIQUE (user_id, form_id)
);

CREATE TABLE IF NOT EXISTS responses (
  id TEXT PRIMARY KEY,
  form_id TEXT NOT NULL,
  user_id TEXT REFERENCES users(id),
  name TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  total_score DOUBLE PRECISION NOT NULL,
  max_score DOUBLE PRECISION NOT NULL,
  percent DOUBLE PRECISION NOT NULL,
  level TEXT NOT NULL,
  tip TEXT NOT NULL,
  answers_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_responses_form_created
  ON responses (form_id, created_at DESC);
`
