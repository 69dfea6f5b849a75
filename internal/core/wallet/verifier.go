package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Bhagath1907/DSK/internal/core/domain"
)

// Verification outcomes. Pending and already-processed are success-shaped
// terminal states, not errors: the client polls again, or is told the
// credit already happened.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusPending          Status = "pending"
	StatusAlreadyProcessed Status = "already_processed"
)

// descriptionTemplate is the legacy transaction description format. The
// dashboard and existing rows depend on this exact text, so it is kept
// verbatim even though deduplication now runs on the payment_ref column.
const descriptionTemplate = "Wallet top-up via Razorpay (payment: %s)"

// Description renders the ledger description for a gateway payment.
func Description(paymentID string) string {
	return fmt.Sprintf(descriptionTemplate, paymentID)
}

// PaymentFetcher is the slice of the gateway client the verifier needs.
type PaymentFetcher interface {
	FetchPayment(ctx context.Context, paymentID string) (*domain.PaymentEvent, error)
}

// Ledger applies credits. paymentRef, when non-empty, must guarantee
// at-most-once crediting across concurrent callers.
type Ledger interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, description, paymentRef string) (newBalance int64, alreadyProcessed bool, err error)
}

// AccountResolver looks up the destination wallet for webhook events whose
// notes carry no account id.
type AccountResolver interface {
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// Parker records payments that are not yet captured so the reconciler can
// re-poll them. Optional; a nil Parker disables parking.
type Parker interface {
	Park(ctx context.Context, paymentID string, accountID uuid.UUID, planName string) error
}

// Verifier validates an inbound payment reference against the gateway's
// source of truth and applies the credit at most once.
type Verifier struct {
	gateway  PaymentFetcher // nil when credentials are missing
	ledger   Ledger
	accounts AccountResolver
	pending  Parker
}

func NewVerifier(gateway PaymentFetcher, ledger Ledger, accounts AccountResolver, pending Parker) *Verifier {
	return &Verifier{gateway: gateway, ledger: ledger, accounts: accounts, pending: pending}
}

// Request identifies one payment to verify. Exactly one of the two shapes
// is expected: the client path sets AccountID and PlanName; the webhook
// path sets FromWebhook and relies on the gateway's notes and payer email.
type Request struct {
	PaymentID   string
	AccountID   uuid.UUID // Client-asserted destination (zero on webhook path)
	PlanName    string
	FromWebhook bool
}

type Result struct {
	Status     Status
	Amount     int64 // Minor units; zero until the payment is captured
	NewBalance int64 // Minor units; only meaningful on success/already_processed
}

// Verify runs the full verification sequence:
// fetch authoritative state, check capture, resolve the destination
// account, sanity-check the amount against the plan, then credit.
//
// ErrDropEvent is returned on the webhook path when the destination cannot
// be resolved; the handler logs and acks so the gateway does not retry.
func (v *Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	if v.gateway == nil {
		return Result{}, domain.ErrGatewayNotConfigured
	}
	if req.PaymentID == "" {
		return Result{}, domain.ErrPaymentNotFound
	}

	payment, err := v.gateway.FetchPayment(ctx, req.PaymentID)
	if errors.Is(err, domain.ErrGatewayTimeout) {
		// Retryable, not a credit failure. Park it (if we know the
		// destination) and tell the caller to poll again.
		v.park(ctx, req.PaymentID, req.AccountID, req.PlanName)
		return Result{Status: StatusPending}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if !payment.Captured {
		v.park(ctx, req.PaymentID, req.AccountID, req.PlanName)
		return Result{Status: StatusPending}, nil
	}

	// A captured payment with a non-positive amount is a malformed event,
	// not something to hand the ledger (its amount check would bounce it
	// as a raw database error).
	if payment.Amount <= 0 {
		slog.Warn("captured payment reports a non-positive amount",
			"payment_id", req.PaymentID, "amount", payment.Amount)
		return Result{}, domain.ErrInvalidAmount
	}

	accountID, err := v.resolveAccount(ctx, req, payment)
	if err != nil {
		return Result{}, err
	}

	// Plan sanity check applies only to the client path: webhook notes are
	// written by our own checkout flow and carry no client-asserted plan.
	if !req.FromWebhook && !domain.PlanMatches(req.PlanName, payment.Amount) {
		expected, _ := domain.PlanAmount(req.PlanName)
		slog.Warn("payment amount does not match plan",
			"payment_id", req.PaymentID,
			"plan", req.PlanName,
			"expected", expected,
			"paid", payment.Amount,
		)
		return Result{}, domain.ErrAmountMismatch
	}

	newBalance, already, err := v.ledger.Credit(ctx, accountID, payment.Amount, Description(req.PaymentID), req.PaymentID)
	if err != nil {
		return Result{}, err
	}

	status := StatusSuccess
	if already {
		status = StatusAlreadyProcessed
	}
	return Result{Status: status, Amount: payment.Amount, NewBalance: newBalance}, nil
}

// ErrDropEvent marks a webhook event whose destination account could not
// be resolved. Logged and acknowledged, never surfaced to the gateway.
var ErrDropEvent = errors.New("payment event dropped: no destination account")

func (v *Verifier) resolveAccount(ctx context.Context, req Request, payment *domain.PaymentEvent) (uuid.UUID, error) {
	// Client-asserted destination wins.
	if req.AccountID != uuid.Nil {
		return req.AccountID, nil
	}

	// Webhook notes carry the account id when our checkout flow set it.
	if payment.AccountID != "" {
		id, err := uuid.Parse(payment.AccountID)
		if err == nil {
			return id, nil
		}
		slog.Warn("webhook notes carry a malformed account id",
			"payment_id", payment.PaymentID, "account_id", payment.AccountID)
	}

	// Last resort: look up by payer email. Best effort only.
	if payment.Email != "" {
		acc, err := v.accounts.GetAccountByEmail(ctx, payment.Email)
		if err == nil {
			return acc.ID, nil
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return uuid.Nil, err
		}
	}

	if req.FromWebhook {
		return uuid.Nil, ErrDropEvent
	}
	return uuid.Nil, domain.ErrAccountNotFound
}

func (v *Verifier) park(ctx context.Context, paymentID string, accountID uuid.UUID, planName string) {
	if v.pending == nil || accountID == uuid.Nil {
		return
	}
	if err := v.pending.Park(ctx, paymentID, accountID, planName); err != nil {
		slog.Error("failed to park pending payment", "error", err, "payment_id", paymentID)
	}
}
