package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farmmarket/internal/database"
	"farmmarket/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories that must commit together.
// Repositories obtained from the Store passed to WithinTx's callback share that transaction.
type Store interface {
	Products() ProductRepository
	Categories() CategoryRepository
	Accounts() AccountRepository
	Carts() CartRepository
	Orders() OrderRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db    *sql.DB
	q     DBTX
	inTx  bool
	txCfg database.TxConfig
}

// NewStore creates a Store backed by the given pool
func NewStore(db *sql.DB, txCfg database.TxConfig) Store {
	return &store{db: db, q: db, txCfg: txCfg}
}

func (s *store) Products() ProductRepository { return &productRepository{db: s.q} }
func (s *store) Categories() CategoryRepository { return &categoryRepository{db: s.q} }
func (s *store) Accounts() AccountRepository { return &accountRepository{db: s.q} }
func (s *store) Carts() CartRepository { return &cartRepository{db: s.q} }
func (s *store) Orders() OrderRepository { return &orderRepository{db: s.q} }

// WithinTx runs fn in one transaction. Nested calls join the outer transaction.
// Failures of the transaction machinery itself are reported as domain.ErrTransaction;
// errors returned by fn are passed through after rollback.
func (s *store) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	err := database.RunInTx(ctx, s.db, s.txCfg, func(tx *sql.Tx) error {
		return fn(&store{db: s.db, q: tx, inTx: true, txCfg: s.txCfg})
	})
	if err == nil {
		return nil
	}

	var txErr *database.TxError
	if errors.As(err, &txErr) || database.IsRetryable(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrTransaction, err)
	}
	return err
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// requireAffected turns a statement that touched no row into notFound
func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}
