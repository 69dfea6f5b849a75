package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a user's spendable wallet balance.
// Accounts are created when the identity system provisions a user;
// this service only ever mutates the balance, never deletes the row.
type Account struct {
	ID        uuid.UUID `json:"id"`
	OwnerName string    `json:"owner_name"`
	Email     string    `json:"email,omitempty"`
	Balance   int64     `json:"balance"` // Stored in minor units (paise)
	CreatedAt time.Time `json:"created_at"`
}

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Transaction is an immutable ledger entry. Rows are append-only:
// nothing in this service updates or deletes a transaction.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Amount      int64     `json:"amount"` // Minor units, always positive
	Direction   Direction `json:"direction"`
	Description string    `json:"description"`
	PaymentRef  string    `json:"payment_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentEvent is one reported payment from the gateway. It is never
// stored verbatim: it either produces exactly one Transaction or is
// discarded as a duplicate/invalid event.
type PaymentEvent struct {
	PaymentID string
	Amount    int64 // Minor units as reported by the gateway
	Currency  string
	Captured  bool
	Email     string
	AccountID string // From gateway notes, may be empty
	PlanName  string // From gateway notes, may be empty
}
