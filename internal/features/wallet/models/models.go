package models

import "time"

type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypePurchase TransactionType = "purchase"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// PaymentStatusVerified is the only payment status: a payments row exists
// exactly when a reference was reconciled.
const PaymentStatusVerified = "verified"

// User is a wallet owner. Balance is stored in integer cents; the non-negative
// invariant is enforced by the store.
type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhotoURL     string    `json:"photo_url"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transaction is a ledger entry. ReferenceID is the idempotency key
// correlating checkout creation, the processor callback and verification;
// AmountCents is signed (negative for purchases).
type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        TransactionType   `json:"type"`
	AmountCents int64             `json:"amount_cents"`
	Description string            `json:"description"`
	ReferenceID string            `json:"reference_id"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Payment records a reconciled deposit. Its unique reference_id acts as the
// settlement dedup guard.
type Payment struct {
	ID          int64     `json:"id"`
	ReferenceID string    `json:"reference_id"`
	UserID      int64     `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type BalanceResponse struct {
	Balance   float64 `json:"balance"`
	UserID    int64   `json:"userId"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
}

type TransactionResponse struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	ReferenceID string    `json:"referenceId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DepositResponse struct {
	CheckoutURL string  `json:"checkoutUrl"`
	ReferenceID string  `json:"referenceId"`
	Amount      float64 `json:"amount"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
