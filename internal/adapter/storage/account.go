package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bhagath1907/DSK/internal/core/domain"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount provisions a wallet with a zero balance. In production the
// identity system calls this when a user signs up.
func (r *AccountRepository) CreateAccount(ctx context.Context, ownerName, email string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (owner_name, email, balance)
		VALUES ($1, NULLIF($2, ''), 0)
		RETURNING id, owner_name, COALESCE(email, ''), balance, created_at
	`
	var acc domain.Account
	err := r.db.QueryRow(ctx, query, ownerName, email).Scan(
		&acc.ID, &acc.OwnerName, &acc.Email, &acc.Balance, &acc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &acc, nil
}

// GetAccountByID
func (r *AccountRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, owner_name, COALESCE(email, ''), balance, created_at FROM accounts WHERE id = $1`
	var acc domain.Account
	err := r.db.QueryRow(ctx, query, id).Scan(
		&acc.ID, &acc.OwnerName, &acc.Email, &acc.Balance, &acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetAccountByEmail resolves the destination wallet for webhook events
// whose notes carry no account id. Best effort: callers drop the event
// (with a log line) when this misses.
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT id, owner_name, COALESCE(email, ''), balance, created_at FROM accounts WHERE email = $1`
	var acc domain.Account
	err := r.db.QueryRow(ctx, query, email).Scan(
		&acc.ID, &acc.OwnerName, &acc.Email, &acc.Balance, &acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// SaveAPIKey stores the hashed key for the account
func (r *AccountRepository) SaveAPIKey(ctx context.Context, accountID uuid.UUID, keyHash string, keyPrefix string) error {
	query := `INSERT INTO api_keys (account_id, key_hash, key_prefix) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, accountID, keyHash, keyPrefix)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}
