package repository

import (
	"context"
	"errors"

	"proxy-store-backend/internal/features/wallet/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("duplicate reference id")
)

type UserRepository interface {
	// GetOrCreate inserts the user keyed by telegram_id or refreshes the
	// stored profile fields; it is idempotent.
	GetOrCreate(ctx context.Context, user *models.User) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type TransactionRepository interface {
	// Create inserts a ledger entry; a reference_id collision yields
	// ErrDuplicateReference.
	Create(ctx context.Context, tx *models.Transaction) error
	GetByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error)
}
