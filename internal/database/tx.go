package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that mean the transaction lost a race and may simply be run again.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// TxConfig bounds how long and how often a transaction is retried.
type TxConfig struct {
	MaxAttempts int
	Timeout     time.Duration
}

// IsRetryable reports whether err is a transient conflict between concurrent transactions.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
	}
	return false
}

// RunInTx runs fn inside a transaction, committing when it returns nil and rolling back otherwise.
// Transient conflicts are retried with exponential backoff; any other error from fn is returned as is.
func RunInTx(ctx context.Context, db *sql.DB, cfg TxConfig, fn func(tx *sql.Tx) error) error {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	attempts := uint64(1)
	if cfg.MaxAttempts > 1 {
		attempts = uint64(cfg.MaxAttempts)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(20*time.Millisecond),
			backoff.WithMaxInterval(500*time.Millisecond),
		), attempts-1),
		ctx,
	)

	operation := func() error {
		err := runOnce(ctx, db, fn)
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, policy)
}

func runOnce(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return &TxError{Op: "begin", Err: err}
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return &TxError{Op: "commit", Err: err}
	}
	return nil
}

// TxError reports a failure of the transaction itself rather than of the work inside it.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("failed to %s transaction: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}
