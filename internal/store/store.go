// Package store is the Postgres persistence layer. All writes are
// last-write-wins full-row updates; the single-process deployment model makes
// that acceptable and it keeps the queries simple.
package store

import (
	"database/sql"
	"errors"

	"beacon/pkg/logging"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db     *sql.DB
	logger logging.Logger
}

func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}
