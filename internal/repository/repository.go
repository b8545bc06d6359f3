// Package repository implements the PostgreSQL stores for users, events and
// bookings. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the stores translate.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// Options bounds every transaction the stores run.
type Options struct {
	TxTimeout   time.Duration
	LockTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TxTimeout <= 0 {
		o.TxTimeout = 5 * time.Second
	}
	if o.LockTimeout <= 0 || o.LockTimeout > o.TxTimeout {
		o.LockTimeout = o.TxTimeout
	}
	return o
}

type scanner interface {
	Scan(dest ...any) error
}

// txRunner runs a function inside a bounded transaction and classifies the
// resulting error.
type txRunner struct {
	db   *pgxpool.Pool
	opts Options
}

func newTxRunner(db *pgxpool.Pool, opts Options) txRunner {
	return txRunner{db: db, opts: opts.withDefaults()}
}

// run commits when fn returns nil and rolls back otherwise. Cancelling ctx
// mid-transaction rolls back as well; nothing is left half applied.
func (r txRunner) run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.TxTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	lockTimeout := fmt.Sprintf("%dms", r.opts.LockTimeout.Milliseconds())
	if _, err = tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeout); err != nil {
		return classify(fmt.Errorf("set lock timeout: %w", err))
	}

	if err = fn(ctx, tx); err != nil {
		return classify(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// query runs a read-only statement under the same timeout as transactions.
func (r txRunner) query(ctx context.Context, fn func(ctx context.Context, db *pgxpool.Pool) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.TxTimeout)
	defer cancel()
	return classify(fn(ctx, r.db))
}

// classify maps contention and timeout failures onto model.ErrTransient.
// Caller cancellation is returned unchanged.
func classify(err error) error {
	if err == nil || model.Kind(err) != nil {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
			return fmt.Errorf("%w: %w", model.ErrTransient, err)
		case codeCheckViolation:
			return fmt.Errorf("%w: %w", model.ErrInvariantViolation, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	return err
}

func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching query literally anywhere.
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}
