package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/features/proxy/models"
	"proxy-store-backend/internal/features/proxy/repository"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
	walletrepo "proxy-store-backend/internal/features/wallet/repository"
)

type fakeStore struct {
	products  map[int64]*models.Product
	user      *walletmodels.User
	purchases []*models.Purchase
	debits    []*walletmodels.Transaction
}

func newFakeStore(balanceCents int64, product *models.Product) *fakeStore {
	return &fakeStore{
		products: map[int64]*models.Product{product.ID: product},
		user: &walletmodels.User{
			ID:           1,
			TelegramID:   99281932,
			Username:     "rogue",
			BalanceCents: balanceCents,
		},
	}
}

func (s *fakeStore) ListActive(_ context.Context) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (s *fakeStore) CreatePurchase(_ context.Context, purchase *models.Purchase, debit *walletmodels.Transaction) (int64, error) {
	product := s.products[purchase.ProductID]
	if s.user.BalanceCents < purchase.TotalCents {
		return 0, repository.ErrInsufficientBalance
	}
	if product == nil || product.Stock < purchase.Quantity || !product.IsActive {
		return 0, repository.ErrInsufficientStock
	}

	s.user.BalanceCents -= purchase.TotalCents
	product.Stock -= purchase.Quantity
	purchase.ID = int64(len(s.purchases) + 1)
	s.purchases = append(s.purchases, purchase)
	s.debits = append(s.debits, debit)
	return s.user.BalanceCents, nil
}

// userRepo narrows the fake store to the user repository interface.
func userRepo(s *fakeStore) walletrepo.UserRepository {
	return &fakeUserRepo{store: s}
}

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) GetOrCreate(_ context.Context, _ *walletmodels.User) (*walletmodels.User, error) {
	return r.store.user, nil
}

func (r *fakeUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*walletmodels.User, error) {
	if r.store.user.TelegramID != telegramID {
		return nil, walletrepo.ErrUserNotFound
	}
	return r.store.user, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ int64) (*walletmodels.User, error) {
	return r.store.user, nil
}

type fakeIssuer struct {
	issued int
	err    error
}

func (i *fakeIssuer) Issue(userID int64, _ *models.Product, gbAmount int64, quantity int) (string, error) {
	if i.err != nil {
		return "", i.err
	}
	i.issued++
	return fmt.Sprintf("u%d:secret@gate.example.com:1080", userID), nil
}

func testProduct() *models.Product {
	return &models.Product{
		ID:              3,
		Name:            "Residential (GB) Proxy",
		GBOptions:       []int64{1, 2, 5, 10, 50, 100},
		PricePerGBCents: 150,
		Stock:           1000,
		IsActive:        true,
	}
}

var testUser = initdata.User{ID: 99281932, Username: "rogue"}

func assertAppErrorCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestPurchaseDebitsWalletAndStock(t *testing.T) {
	store := newFakeStore(2500, testProduct())
	issuer := &fakeIssuer{}
	svc := NewProxyService(store, userRepo(store), nil, issuer)

	// 2 units of 5 GB at $1.50/GB is $15.00.
	resp, err := svc.Purchase(context.Background(), testUser, 3, 5, 2)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 15.0, resp.TotalAmount)
	assert.Equal(t, 10.0, resp.RemainingBalance)
	assert.NotEmpty(t, resp.Credentials)
	assert.Equal(t, 1, issuer.issued)

	assert.Equal(t, int64(1000), store.user.BalanceCents)
	assert.Equal(t, 998, store.products[3].Stock)

	require.Len(t, store.purchases, 1)
	purchase := store.purchases[0]
	assert.Equal(t, int64(10), purchase.GBAmount)
	assert.Equal(t, int64(1500), purchase.TotalCents)
	assert.Equal(t, models.PurchaseStatusCompleted, purchase.Status)

	require.Len(t, store.debits, 1)
	debit := store.debits[0]
	assert.Equal(t, int64(-1500), debit.AmountCents)
	assert.Equal(t, walletmodels.TransactionTypePurchase, debit.Type)
	assert.Equal(t, walletmodels.TransactionStatusCompleted, debit.Status)
	assert.NotEmpty(t, debit.ReferenceID)
}

func TestPurchaseRejectsUnknownGBOption(t *testing.T) {
	store := newFakeStore(10000, testProduct())
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), testUser, 3, 7, 1)
	assertAppErrorCode(t, err, apperrors.ErrCodeValidation)

	assert.Equal(t, int64(10000), store.user.BalanceCents)
	assert.Equal(t, 1000, store.products[3].Stock)
}

func TestPurchaseRejectsInsufficientBalance(t *testing.T) {
	store := newFakeStore(100, testProduct())
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), testUser, 3, 5, 2)
	assertAppErrorCode(t, err, apperrors.ErrCodeInsufficientBalance)

	assert.Equal(t, int64(100), store.user.BalanceCents)
	assert.Equal(t, 1000, store.products[3].Stock)
	assert.Empty(t, store.purchases)
}

func TestPurchaseRejectsInsufficientStock(t *testing.T) {
	product := testProduct()
	product.Stock = 1
	store := newFakeStore(100000, product)
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), testUser, 3, 5, 2)
	assertAppErrorCode(t, err, apperrors.ErrCodeInsufficientStock)

	assert.Equal(t, int64(100000), store.user.BalanceCents)
	assert.Equal(t, 1, product.Stock)
}

func TestPurchaseRejectsInactiveProduct(t *testing.T) {
	product := testProduct()
	product.IsActive = false
	store := newFakeStore(100000, product)
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), testUser, 3, 5, 1)
	assertAppErrorCode(t, err, apperrors.ErrCodeProductNotFound)
}

func TestPurchaseRejectsUnknownProduct(t *testing.T) {
	store := newFakeStore(100000, testProduct())
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), testUser, 42, 5, 1)
	assertAppErrorCode(t, err, apperrors.ErrCodeProductNotFound)
}

func TestPurchaseRejectsUnknownUser(t *testing.T) {
	store := newFakeStore(100000, testProduct())
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), initdata.User{ID: 1}, 3, 5, 1)
	assertAppErrorCode(t, err, apperrors.ErrCodeUserNotFound)
}

func TestPurchaseRejectsInvalidQuantity(t *testing.T) {
	store := newFakeStore(100000, testProduct())
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	_, err := svc.Purchase(context.Background(), testUser, 3, 5, 0)
	assertAppErrorCode(t, err, apperrors.ErrCodeValidation)

	_, err = svc.Purchase(context.Background(), testUser, 3, 5, 101)
	assertAppErrorCode(t, err, apperrors.ErrCodeValidation)
}

func TestListProductsReturnsActiveCatalog(t *testing.T) {
	store := newFakeStore(0, testProduct())
	svc := NewProxyService(store, userRepo(store), nil, &fakeIssuer{})

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)

	require.Len(t, products, 1)
	assert.Equal(t, "Residential (GB) Proxy", products[0].Name)
	assert.Equal(t, 1.5, products[0].PricePerGB)
	assert.Equal(t, []int64{1, 2, 5, 10, 50, 100}, products[0].GBOptions)
}
