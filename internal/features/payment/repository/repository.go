package repository

import (
	"context"
	"errors"

	walletmodels "proxy-store-backend/internal/features/wallet/models"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type SettleOutcome string

const (
	// OutcomeSettled means this call performed the pending→completed
	// transition and credited the balance.
	OutcomeSettled SettleOutcome = "settled"
	// OutcomeAlreadyProcessed means another path (callback or verify) won
	// the race or the transaction was settled earlier; nothing changed.
	OutcomeAlreadyProcessed SettleOutcome = "already_processed"
)

type SettleResult struct {
	Outcome      SettleOutcome
	UserID       int64
	AmountCents  int64
	BalanceCents int64
}

// Repository performs settlement state transitions. Both the callback and the
// verify paths funnel into Settle, which must credit a reference at most once
// regardless of concurrent or repeated invocations.
type Repository interface {
	// Settle transitions the transaction from pending to completed,
	// records the payment row and credits the balance as one atomic unit.
	// amountCents <= 0 falls back to the stored transaction amount.
	Settle(ctx context.Context, referenceID string, amountCents int64) (*SettleResult, error)

	// MarkFailed transitions pending→failed; settled transactions are left
	// untouched.
	MarkFailed(ctx context.Context, referenceID string) error

	// GetPayment returns the reconciliation record for a reference, or nil
	// when the reference has not been settled.
	GetPayment(ctx context.Context, referenceID string) (*walletmodels.Payment, error)
}
