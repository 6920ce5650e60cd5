package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"proxy-store-backend/internal/common/cache"
	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/logger"
	"proxy-store-backend/internal/common/metrics"
	"proxy-store-backend/internal/common/validation"
	"proxy-store-backend/internal/features/proxy/models"
	"proxy-store-backend/internal/features/proxy/repository"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
	walletrepo "proxy-store-backend/internal/features/wallet/repository"
)

const (
	productsCacheKey = "products:active"
	productsCacheTTL = time.Minute
)

// CredentialIssuer hands out provider-assigned proxy credentials for an
// applied purchase.
type CredentialIssuer interface {
	Issue(userID int64, product *models.Product, gbAmount int64, quantity int) (string, error)
}

type ProxyService interface {
	ListProducts(ctx context.Context) ([]*models.ProductResponse, error)
	Purchase(ctx context.Context, tgUser initdata.User, productID, gbAmount int64, quantity int) (*models.PurchaseResponse, error)
}

type proxyService struct {
	repo   repository.Repository
	users  walletrepo.UserRepository
	cache  *cache.Service
	issuer CredentialIssuer
}

func NewProxyService(repo repository.Repository, users walletrepo.UserRepository, cacheSvc *cache.Service, issuer CredentialIssuer) ProxyService {
	return &proxyService{repo: repo, users: users, cache: cacheSvc, issuer: issuer}
}

func (s *proxyService) ListProducts(ctx context.Context) ([]*models.ProductResponse, error) {
	if s.cache != nil {
		var cached []*models.ProductResponse
		if err := s.cache.Get(ctx, productsCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.Warn().Err(err).Msg("Product cache read failed")
		}
	}

	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to list products")
	}

	out := make([]*models.ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, models.NewProductResponse(p))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, productsCacheKey, out, productsCacheTTL); err != nil {
			logger.Warn().Err(err).Msg("Product cache write failed")
		}
	}
	return out, nil
}

func (s *proxyService) Purchase(ctx context.Context, tgUser initdata.User, productID, gbAmount int64, quantity int) (*models.PurchaseResponse, error) {
	if err := validation.ValidateQuantity(quantity); err != nil {
		return nil, apperrors.NewValidationError("quantity", err.Error())
	}

	user, err := s.users.GetByTelegramID(ctx, tgUser.ID)
	if err != nil {
		if errors.Is(err, walletrepo.ErrUserNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeUserNotFound, "User not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to load user")
	}

	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeProductNotFound, "Product not found or not available")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to load product")
	}
	if !product.IsActive {
		return nil, apperrors.New(apperrors.ErrCodeProductNotFound, "Product not found or not available")
	}

	if err := validation.ValidateGBAmount(gbAmount, product.GBOptions); err != nil {
		return nil, apperrors.NewValidationError("gbAmount", err.Error())
	}

	// Pre-checks give precise errors; the repository re-checks both limits
	// conditionally inside the transaction, which is what actually holds
	// under concurrency.
	if product.Stock < quantity {
		return nil, apperrors.New(apperrors.ErrCodeInsufficientStock, "Insufficient stock available").
			WithDetail("available", product.Stock)
	}

	totalCents := gbAmount * int64(quantity) * product.PricePerGBCents
	if user.BalanceCents < totalCents {
		return nil, apperrors.New(apperrors.ErrCodeInsufficientBalance, "Insufficient balance").
			WithDetail("required", walletmodels.CentsToDollars(totalCents)).
			WithDetail("available", walletmodels.CentsToDollars(user.BalanceCents))
	}

	credentials, err := s.issuer.Issue(user.ID, product, gbAmount, quantity)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to issue proxy credentials")
	}

	totalGB := gbAmount * int64(quantity)
	purchase := &models.Purchase{
		UserID:      user.ID,
		ProductID:   product.ID,
		GBAmount:    totalGB,
		Quantity:    quantity,
		TotalCents:  totalCents,
		Status:      models.PurchaseStatusCompleted,
		Credentials: credentials,
	}
	debit := &walletmodels.Transaction{
		UserID:      user.ID,
		Type:        walletmodels.TransactionTypePurchase,
		AmountCents: -totalCents,
		Description: fmt.Sprintf("Purchase of %dGB proxy package(s)", totalGB),
		ReferenceID: newPurchaseReference(),
		Status:      walletmodels.TransactionStatusCompleted,
	}

	balanceCents, err := s.repo.CreatePurchase(ctx, purchase, debit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, apperrors.New(apperrors.ErrCodeInsufficientBalance, "Insufficient balance")
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, apperrors.New(apperrors.ErrCodeInsufficientStock, "Insufficient stock available")
		default:
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to apply purchase")
		}
	}

	if s.cache != nil {
		// Stock changed; drop the cached catalog.
		if err := s.cache.Delete(ctx, productsCacheKey); err != nil {
			logger.Warn().Err(err).Msg("Product cache invalidation failed")
		}
	}

	metrics.PurchasesCompleted.Inc()
	logger.Info().
		Int64("user_id", user.ID).
		Int64("product_id", product.ID).
		Int64("gb_amount", totalGB).
		Int64("total_cents", totalCents).
		Msg("Proxy purchase applied")

	return &models.PurchaseResponse{
		Success:          true,
		PurchaseID:       purchase.ID,
		TotalAmount:      walletmodels.CentsToDollars(totalCents),
		RemainingBalance: walletmodels.CentsToDollars(balanceCents),
		Credentials:      credentials,
	}, nil
}
