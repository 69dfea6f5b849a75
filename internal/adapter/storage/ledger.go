package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bhagath1907/DSK/internal/core/domain"
)

type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Credit applies a positive amount to an account and appends the matching
// CREDIT transaction, all inside one database transaction, so the balance
// can never drift from the transaction log.
//
// When paymentRef is non-empty it acts as the idempotency key: the account
// row lock serializes concurrent attempts for the same payment, the ref
// lookup runs under that lock, and the unique index on payment_ref is the
// backstop for attempts racing on different accounts (misdirected retries).
// A duplicate is not an error; the caller gets the current balance and
// alreadyProcessed=true.
func (r *LedgerRepository) Credit(ctx context.Context, accountID uuid.UUID, amount int64, description, paymentRef string) (newBalance int64, alreadyProcessed bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, false, err
	}

	if paymentRef != "" {
		var existing uuid.UUID
		err = tx.QueryRow(ctx, `SELECT id FROM transactions WHERE payment_ref = $1`, paymentRef).Scan(&existing)
		if err == nil {
			// Payment was already credited; report the balance as-is.
			return balance, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, err
		}
	}

	newBalance = balance + amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, newBalance, accountID); err != nil {
		return 0, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (account_id, amount, direction, description, payment_ref)
		VALUES ($1, $2, 'CREDIT', $3, NULLIF($4, ''))`,
		accountID, amount, description, paymentRef)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race against a credit of the same payment to another
			// account. The rollback undoes our balance write; surface the
			// stored balance and let the caller treat it as a duplicate.
			return r.alreadyProcessed(ctx, accountID)
		}
		return 0, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return newBalance, false, nil
}

// Debit removes funds, guarding against a negative balance. Same
// single-transaction shape as Credit.
func (r *LedgerRepository) Debit(ctx context.Context, accountID uuid.UUID, amount int64, description string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}

	if balance < amount {
		return 0, domain.ErrInsufficientBalance
	}

	newBalance := balance - amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, newBalance, accountID); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (account_id, amount, direction, description)
		VALUES ($1, $2, 'DEBIT', $3)`,
		accountID, amount, description)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// History fetches the most recent transactions for an account.
func (r *LedgerRepository) History(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, account_id, amount, direction, description, COALESCE(payment_ref, ''), created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Direction, &t.Description, &t.PaymentRef, &t.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, t)
	}
	return history, rows.Err()
}

func (r *LedgerRepository) alreadyProcessed(ctx context.Context, accountID uuid.UUID) (int64, bool, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
