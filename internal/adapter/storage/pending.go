package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pending payment statuses.
const (
	PendingStatusPending   = "PENDING"
	PendingStatusCompleted = "COMPLETED"
	PendingStatusExpired   = "EXPIRED"
	PendingStatusFailed    = "FAILED"
)

// PendingPayment is a payment the gateway has not yet reported as captured
// (or that timed out during verification). The reconciler re-polls these.
type PendingPayment struct {
	ID        uuid.UUID
	PaymentID string
	AccountID uuid.UUID
	PlanName  string
	Status    string
	Attempts  int
}

type PendingRepository struct {
	db *pgxpool.Pool
}

func NewPendingRepository(db *pgxpool.Pool) *PendingRepository {
	return &PendingRepository{db: db}
}

// Park records a payment for later reconciliation. Re-parking the same
// payment id is a no-op, so a client polling verify-payment does not reset
// the attempt counter.
func (r *PendingRepository) Park(ctx context.Context, paymentID string, accountID uuid.UUID, planName string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pending_payments (payment_id, account_id, plan_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (payment_id) DO NOTHING`,
		paymentID, accountID, planName)
	return err
}

// ClaimNext picks one due pending payment and locks it for this worker.
// Returns (nil, nil) when nothing is due.
func (r *PendingRepository) ClaimNext(ctx context.Context, tx pgx.Tx) (*PendingPayment, error) {
	query := `
		SELECT id, payment_id, account_id, plan_name, status, attempts
		FROM pending_payments
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	var p PendingPayment
	err := tx.QueryRow(ctx, query).Scan(&p.ID, &p.PaymentID, &p.AccountID, &p.PlanName, &p.Status, &p.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkDone moves a claimed payment to a terminal status.
func (r *PendingRepository) MarkDone(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx,
		`UPDATE pending_payments SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Reschedule bumps the attempt counter and pushes the next poll out.
func (r *PendingRepository) Reschedule(ctx context.Context, tx pgx.Tx, id uuid.UUID, nextRun time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE pending_payments
		SET attempts = attempts + 1, next_run_at = $1, updated_at = NOW()
		WHERE id = $2`, nextRun, id)
	return err
}

// Begin starts a worker transaction on the underlying pool.
func (r *PendingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}
