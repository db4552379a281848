// Package storage implements the persistence boundaries of the trade core on
// PostgreSQL via pgx. Lifecycle transitions run inside pgx transactions with
// row locks on the listings they touch.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/trade"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Store is the PostgreSQL-backed implementation of trade.Store and
// guest.AccountStore.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for services that run their own reads.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// ExecTx runs fn inside a single transaction. Either every write fn performs
// commits, or the whole transaction rolls back.
func (s *Store) ExecTx(ctx context.Context, fn func(tx trade.TxStore) error) error {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.Storage(err)
	}
	defer func() { _ = pgxTx.Rollback(ctx) }()

	if err := fn(&Tx{tx: pgxTx}); err != nil {
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// Tx is the transactional view handed to ExecTx closures.
type Tx struct {
	tx pgx.Tx
}

// mapPgError converts low-level postgres errors into the core's typed errors.
// A unique violation on the open-trades-per-target index means the listing was
// claimed by a concurrent proposal.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.Wrap(apperror.CodeNotFound, "record not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if pgErr.ConstraintName == "uq_trades_open_target" {
			return apperror.Wrap(apperror.CodeListingUnavailable, "listing is already the target of an open trade", err)
		}
	}
	return apperror.Storage(err)
}
