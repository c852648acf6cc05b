package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farmmarket/internal/domain"

	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountRepository is a read-only lookup of accounts managed by the identity service
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new instance of AccountRepository
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

// FindByID retrieves an account by ID using parameterized queries
func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, email, name, role
		FROM accounts
		WHERE id = $1
	`

	account := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.Role,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}

	return account, nil
}
