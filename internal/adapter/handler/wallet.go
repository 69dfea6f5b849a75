package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Bhagath1907/DSK/internal/adapter/storage"
	"github.com/Bhagath1907/DSK/internal/core/domain"
	"github.com/Bhagath1907/DSK/internal/core/wallet"
)

type WalletHandler struct {
	Verifier *wallet.Verifier
	Ledger   *storage.LedgerRepository
}

// VerifyPaymentRequest is the client-initiated verification call made by
// the checkout callback page after Razorpay redirects back.
type VerifyPaymentRequest struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`  // Unused, accepted for forward compatibility
	Signature string `json:"signature"` // Checkout signature, verified by the gateway fetch
	AccountID string `json:"account_id"`
	PlanName  string `json:"plan_name"`
}

func (h *WalletHandler) VerifyPayment(c *fiber.Ctx) error {
	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	if req.PaymentID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "payment_id is required"})
	}
	accountUUID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}

	result, err := h.Verifier.Verify(c.Context(), wallet.Request{
		PaymentID: req.PaymentID,
		AccountID: accountUUID,
		PlanName:  req.PlanName,
	})
	if err != nil {
		return verifyError(c, err, req.PaymentID)
	}

	if result.Status == wallet.StatusPending {
		// Not an error: the payment is not captured yet. The client polls
		// again, or the webhook/reconciler settles it later.
		return c.JSON(fiber.Map{"status": result.Status})
	}

	return c.JSON(fiber.Map{
		"status":      result.Status,
		"amount":      domain.ToMajor(result.Amount),
		"new_balance": domain.ToMajor(result.NewBalance),
	})
}

// TopUpRequest is the manual credit path. Trusted callers only: the route
// sits behind the API-key middleware and bypasses payment verification.
type TopUpRequest struct {
	AccountID   string  `json:"account_id"`
	Amount      float64 `json:"amount"` // Major units (rupees)
	Description string  `json:"description"`
}

func (h *WalletHandler) TopUp(c *fiber.Ctx) error {
	var req TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	accountUUID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid Account ID"})
	}
	amount := domain.ToMinor(req.Amount)
	if amount <= 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
	}

	description := req.Description
	if description == "" {
		description = "Manual wallet top-up"
	}

	// No payment ref: manual credits rely on the Idempotency-Key
	// middleware on this route for deduplication.
	newBalance, _, err := h.Ledger.Credit(c.Context(), accountUUID, amount, description, "")
	if errors.Is(err, domain.ErrAccountNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	if err != nil {
		slog.Error("Manual top-up failed", "error", err, "account_id", accountUUID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Top-up failed"})
	}

	slog.Info("💰 Manual top-up applied", "account_id", accountUUID, "amount", amount)
	return c.JSON(fiber.Map{
		"status":      "success",
		"new_balance": domain.ToMajor(newBalance),
	})
}

func verifyError(c *fiber.Ctx, err error, paymentID string) error {
	switch {
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		slog.Error("Payment verification requested but gateway is not configured")
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "Payments are not configured"})
	case errors.Is(err, domain.ErrPaymentNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	case errors.Is(err, domain.ErrAccountNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	case errors.Is(err, domain.ErrAmountMismatch):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "Paid amount does not match the selected plan"})
	case errors.Is(err, domain.ErrInvalidAmount):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "Payment amount is invalid"})
	default:
		slog.Error("Payment verification failed", "error", err, "payment_id", paymentID)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "Verification failed, please retry"})
	}
}
