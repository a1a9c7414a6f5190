package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Transactor hands repositories a shared transaction handle.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor wraps db.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn with a transaction-bound executor.
func (t *Transactor) WithinTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	return WithTx(ctx, t.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}
