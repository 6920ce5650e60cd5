package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"proxy-store-backend/internal/features/proxy/models"
	"proxy-store-backend/internal/features/proxy/repository"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
)

type postgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) repository.Repository {
	return &postgresRepository{db: db}
}

const productColumns = "id, name, description, gb_options, price_per_gb_cents, stock, is_active, created_at, updated_at"

func (r *postgresRepository) ListActive(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM proxy_products WHERE is_active ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM proxy_products WHERE id = $1", id)

	p, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// CreatePurchase performs the debit, stock decrement and both inserts inside
// one database transaction. The balance and stock updates are conditional, so
// concurrent purchases cannot drive either below zero; the CHECK constraints
// back that up at the store level.
func (r *postgresRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase, debit *walletmodels.Transaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET balance_cents = balance_cents - $1, updated_at = NOW()
		WHERE id = $2 AND balance_cents >= $1
		RETURNING balance_cents
	`, purchase.TotalCents, purchase.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrInsufficientBalance
		}
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE proxy_products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND is_active AND stock >= $1
	`, purchase.Quantity, purchase.ProductID)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return 0, repository.ErrInsufficientStock
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO proxy_purchases (user_id, product_id, gb_amount, quantity, total_cents, status, proxy_credentials)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, purchase.UserID, purchase.ProductID, purchase.GBAmount, purchase.Quantity,
		purchase.TotalCents, purchase.Status, purchase.Credentials).
		Scan(&purchase.ID, &purchase.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create purchase: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, type, amount_cents, description, reference_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, debit.UserID, debit.Type, debit.AmountCents, debit.Description, debit.ReferenceID, debit.Status).
		Scan(&debit.ID, &debit.CreatedAt, &debit.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to record debit transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return balance, nil
}

func scanProduct(scan func(dest ...interface{}) error) (*models.Product, error) {
	var p models.Product
	err := scan(&p.ID, &p.Name, &p.Description, pq.Array(&p.GBOptions),
		&p.PricePerGBCents, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
