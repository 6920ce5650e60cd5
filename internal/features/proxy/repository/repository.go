package repository

import (
	"context"
	"errors"

	"proxy-store-backend/internal/features/proxy/models"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Repository interface {
	ListActive(ctx context.Context) ([]*models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)

	// CreatePurchase applies the four purchase mutations — balance debit,
	// stock decrement, purchase insert, debit transaction insert — as a
	// single atomic unit and returns the remaining balance in cents. A
	// failure at any step leaves all records unchanged.
	CreatePurchase(ctx context.Context, purchase *models.Purchase, debit *walletmodels.Transaction) (int64, error)
}
