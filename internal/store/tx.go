package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/frahmantamala/travel-approval/internal"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// Postgres aborts the loser of two conflicting transactions with one of these.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

var ErrConcurrentUpdate = internal.NewConflictError("Request was changed concurrently, reload and try again", internal.ErrCodeStaleRequest)

// TxManager runs a unit of work in one transaction. Repositories pick the
// transaction up from the context through GetDB.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type txManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) TxManager {
	return &txManager{db: db}
}

// RunInTx joins an outer transaction when ctx already carries one.
func (t *txManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return Unavailable("transaction", err)
}

// GetDB returns the transaction in ctx, or rootDB when there is none.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

// Unavailable wraps a driver error as UpstreamUnavailable. AppErrors pass
// through, and a transaction aborted in favour of a concurrent one is a
// conflict.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	if lostRace(err) {
		return ErrConcurrentUpdate
	}
	return internal.NewUpstreamUnavailableError("persistence unavailable: "+op, internal.ErrCodePersistence, err)
}

// IsNotFound reports gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func lostRace(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
