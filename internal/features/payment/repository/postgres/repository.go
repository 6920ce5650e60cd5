package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"proxy-store-backend/internal/features/payment/repository"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
)

type postgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) repository.Repository {
	return &postgresRepository{db: db}
}

// Settle runs the whole settlement as one database transaction. The
// transaction row is locked first, the payments insert relies on the unique
// reference_id constraint (insert-or-reject, not read-then-write) and the
// status transition is conditional on pending, so two racing paths cannot
// both credit the balance.
func (r *postgresRepository) Settle(ctx context.Context, referenceID string, amountCents int64) (*repository.SettleResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		txID   int64
		userID int64
		stored int64
		status string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, amount_cents, status
		FROM transactions
		WHERE reference_id = $1
		FOR UPDATE
	`, referenceID).Scan(&txID, &userID, &stored, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	if status != string(walletmodels.TransactionStatusPending) {
		balance, err := r.currentBalance(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		return &repository.SettleResult{
			Outcome:      repository.OutcomeAlreadyProcessed,
			UserID:       userID,
			AmountCents:  stored,
			BalanceCents: balance,
		}, nil
	}

	credit := amountCents
	if credit <= 0 {
		credit = stored
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO payments (reference_id, user_id, amount_cents, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reference_id) DO NOTHING
	`, referenceID, userID, credit, walletmodels.PaymentStatusVerified)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		// Reference already reconciled by a concurrent settle.
		balance, err := r.currentBalance(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		return &repository.SettleResult{
			Outcome:      repository.OutcomeAlreadyProcessed,
			UserID:       userID,
			AmountCents:  credit,
			BalanceCents: balance,
		}, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, amount_cents = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, walletmodels.TransactionStatusCompleted, credit, txID, walletmodels.TransactionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to complete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("transaction %s left pending state concurrently", referenceID)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET balance_cents = balance_cents + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance_cents
	`, credit, userID).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return &repository.SettleResult{
		Outcome:      repository.OutcomeSettled,
		UserID:       userID,
		AmountCents:  credit,
		BalanceCents: balance,
	}, nil
}

func (r *postgresRepository) MarkFailed(ctx context.Context, referenceID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE reference_id = $2 AND status = $3
	`, walletmodels.TransactionStatusFailed, referenceID, walletmodels.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark transaction failed: %w", err)
	}

	// Zero rows means the transaction is already settled or failed; both are
	// acceptable terminal states for this path.
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetPayment(ctx context.Context, referenceID string) (*walletmodels.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, reference_id, user_id, amount_cents, status, created_at
		FROM payments
		WHERE reference_id = $1
	`, referenceID)

	var p walletmodels.Payment
	err := row.Scan(&p.ID, &p.ReferenceID, &p.UserID, &p.AmountCents, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) currentBalance(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	var balance int64
	if err := tx.QueryRowContext(ctx, "SELECT balance_cents FROM users WHERE id = $1", userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}
