package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Bhagath1907/DSK/internal/core/domain"
)

// Client talks to the Razorpay REST API. Construct it once in main and
// inject it; there is no package-level client state.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		// Don't let a slow gateway block request handlers
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// payment mirrors the fields of Razorpay's payment entity that we read.
// Every optional field is explicit; absent notes decode to empty strings
// instead of being fished out of a dynamic map.
type payment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // Minor units (paise)
	Currency string `json:"currency"`
	Status   string `json:"status"` // created | authorized | captured | refunded | failed
	Captured bool   `json:"captured"`
	Email    string `json:"email"`
	Notes    struct {
		AccountID string `json:"account_id"`
		PlanName  string `json:"plan_name"`
	} `json:"notes"`
}

// FetchPayment fetches the authoritative payment state by identifier.
//
// Error mapping:
//   - 404 from the gateway -> domain.ErrPaymentNotFound
//   - request timeout      -> domain.ErrGatewayTimeout (retryable; callers
//     treat it as a pending outcome, never a credit failure)
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*domain.PaymentEvent, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("User-Agent", "DSK-Wallet/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrPaymentNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var p payment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &domain.PaymentEvent{
		PaymentID: p.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Captured:  p.Captured || p.Status == "captured",
		Email:     p.Email,
		AccountID: p.Notes.AccountID,
		PlanName:  p.Notes.PlanName,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
