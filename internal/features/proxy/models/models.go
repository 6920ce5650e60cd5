package models

import (
	"time"

	walletmodels "proxy-store-backend/internal/features/wallet/models"
)

const PurchaseStatusCompleted = "completed"

// Product is a purchasable data-quota tier set. GBOptions is the ordered set
// of allowed quota sizes; prices are integer cents per GB.
type Product struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	GBOptions       []int64   `json:"gb_options"`
	PricePerGBCents int64     `json:"price_per_gb_cents"`
	Stock           int       `json:"stock"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Purchase records an applied proxy order. GBAmount is the total quota across
// all units; Credentials holds the provider-assigned access string.
type Purchase struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ProductID   int64     `json:"product_id"`
	GBAmount    int64     `json:"gb_amount"`
	Quantity    int       `json:"quantity"`
	TotalCents  int64     `json:"total_cents"`
	Status      string    `json:"status"`
	Credentials string    `json:"credentials"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProductResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	GBOptions   []int64 `json:"gbOptions"`
	PricePerGB  float64 `json:"pricePerGb"`
	Stock       int     `json:"stock"`
	IsActive    bool    `json:"isActive"`
}

func NewProductResponse(p *Product) *ProductResponse {
	return &ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		GBOptions:   p.GBOptions,
		PricePerGB:  walletmodels.CentsToDollars(p.PricePerGBCents),
		Stock:       p.Stock,
		IsActive:    p.IsActive,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type PurchaseRequest struct {
	InitData  string `json:"init_data"`
	ProductID int64  `json:"productId"`
	GBAmount  int64  `json:"gbAmount"`
	Quantity  int    `json:"quantity"`
}

type PurchaseResponse struct {
	Success          bool    `json:"success"`
	PurchaseID       int64   `json:"purchaseId"`
	TotalAmount      float64 `json:"totalAmount"`
	RemainingBalance float64 `json:"remainingBalance"`
	Credentials      string  `json:"credentials"`
}
