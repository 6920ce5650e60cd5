package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"proxy-store-backend/internal/common/config"
	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/features/payment/models"
	"proxy-store-backend/internal/features/payment/repository"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
	walletrepo "proxy-store-backend/internal/features/wallet/repository"
	"proxy-store-backend/internal/platform/rupantor"
)

// fakeLedger backs the user, transaction and payment repositories with plain
// maps while preserving the settle-at-most-once contract of the real store.
type fakeLedger struct {
	nextUserID   int64
	users        map[int64]*walletmodels.User // keyed by telegram id
	transactions map[string]*walletmodels.Transaction
	payments     map[string]*walletmodels.Payment
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		nextUserID:   1,
		users:        map[int64]*walletmodels.User{},
		transactions: map[string]*walletmodels.Transaction{},
		payments:     map[string]*walletmodels.Payment{},
	}
}

func (l *fakeLedger) GetOrCreate(_ context.Context, user *walletmodels.User) (*walletmodels.User, error) {
	if existing, ok := l.users[user.TelegramID]; ok {
		return existing, nil
	}
	created := *user
	created.ID = l.nextUserID
	l.nextUserID++
	l.users[user.TelegramID] = &created
	return &created, nil
}

func (l *fakeLedger) GetByTelegramID(_ context.Context, telegramID int64) (*walletmodels.User, error) {
	user, ok := l.users[telegramID]
	if !ok {
		return nil, walletrepo.ErrUserNotFound
	}
	return user, nil
}

func (l *fakeLedger) GetByID(_ context.Context, id int64) (*walletmodels.User, error) {
	for _, user := range l.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, walletrepo.ErrUserNotFound
}

func (l *fakeLedger) Create(_ context.Context, tx *walletmodels.Transaction) error {
	if _, ok := l.transactions[tx.ReferenceID]; ok {
		return walletrepo.ErrDuplicateReference
	}
	stored := *tx
	l.transactions[tx.ReferenceID] = &stored
	return nil
}

func (l *fakeLedger) GetByReferenceID(_ context.Context, referenceID string) (*walletmodels.Transaction, error) {
	tx, ok := l.transactions[referenceID]
	if !ok {
		return nil, walletrepo.ErrTransactionNotFound
	}
	return tx, nil
}

func (l *fakeLedger) ListByUser(_ context.Context, userID int64, _ int) ([]*walletmodels.Transaction, error) {
	var out []*walletmodels.Transaction
	for _, tx := range l.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (l *fakeLedger) userByID(id int64) *walletmodels.User {
	for _, user := range l.users {
		if user.ID == id {
			return user
		}
	}
	return nil
}

func (l *fakeLedger) Settle(_ context.Context, referenceID string, amountCents int64) (*repository.SettleResult, error) {
	tx, ok := l.transactions[referenceID]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}

	user := l.userByID(tx.UserID)
	if user == nil {
		return nil, fmt.Errorf("user %d missing", tx.UserID)
	}

	if tx.Status != walletmodels.TransactionStatusPending {
		return &repository.SettleResult{
			Outcome:      repository.OutcomeAlreadyProcessed,
			UserID:       user.ID,
			BalanceCents: user.BalanceCents,
		}, nil
	}
	if _, exists := l.payments[referenceID]; exists {
		return &repository.SettleResult{
			Outcome:      repository.OutcomeAlreadyProcessed,
			UserID:       user.ID,
			BalanceCents: user.BalanceCents,
		}, nil
	}

	credit := amountCents
	if credit <= 0 {
		credit = tx.AmountCents
	}

	l.payments[referenceID] = &walletmodels.Payment{
		ReferenceID: referenceID,
		UserID:      user.ID,
		AmountCents: credit,
		Status:      walletmodels.PaymentStatusVerified,
	}
	tx.Status = walletmodels.TransactionStatusCompleted
	tx.AmountCents = credit
	user.BalanceCents += credit

	return &repository.SettleResult{
		Outcome:      repository.OutcomeSettled,
		UserID:       user.ID,
		AmountCents:  credit,
		BalanceCents: user.BalanceCents,
	}, nil
}

func (l *fakeLedger) MarkFailed(_ context.Context, referenceID string) error {
	tx, ok := l.transactions[referenceID]
	if !ok {
		return nil
	}
	if tx.Status == walletmodels.TransactionStatusPending {
		tx.Status = walletmodels.TransactionStatusFailed
	}
	return nil
}

func (l *fakeLedger) GetPayment(_ context.Context, referenceID string) (*walletmodels.Payment, error) {
	payment, ok := l.payments[referenceID]
	if !ok {
		return nil, nil
	}
	return payment, nil
}

type fakeProcessor struct {
	checkoutErr   error
	checkoutCalls []rupantor.CheckoutRequest

	verifyStatus string
	verifyAmount float64
	verifyErr    error
	verifyCalls  int
}

func (p *fakeProcessor) CreateCheckout(_ context.Context, req rupantor.CheckoutRequest) (*rupantor.CheckoutResponse, error) {
	p.checkoutCalls = append(p.checkoutCalls, req)
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	return &rupantor.CheckoutResponse{
		CheckoutURL: "https://pay.rupantorpay.com/checkout/" + req.ReferenceID,
		ReferenceID: req.ReferenceID,
		Status:      "pending",
	}, nil
}

func (p *fakeProcessor) VerifyPayment(_ context.Context, _ string) (*rupantor.VerifyResponse, error) {
	p.verifyCalls++
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return &rupantor.VerifyResponse{Status: p.verifyStatus, Amount: p.verifyAmount}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Payment.SuccessURL = "https://app.example.com/success"
	cfg.Payment.CancelURL = "https://app.example.com/cancel"
	cfg.Payment.CallbackURL = "https://api.example.com/api/v1/payment/callback"
	cfg.Payment.CustomerEmailDomain = "telegram.com"
	return cfg
}

func newTestService(ledger *fakeLedger, processor *fakeProcessor, cfg *config.Config) PaymentService {
	if cfg == nil {
		cfg = testConfig()
	}
	return NewPaymentService(ledger, ledger, ledger, processor, cfg)
}

var testUser = initdata.User{ID: 99281932, Username: "rogue", FirstName: "Rogue"}

func TestCreateCheckoutCreatesPendingDeposit(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{}
	svc := newTestService(ledger, processor, nil)

	resp, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ReferenceID, "dep_"))
	assert.Equal(t, 20.0, resp.Amount)
	assert.Contains(t, resp.CheckoutURL, resp.ReferenceID)

	tx, err := ledger.GetByReferenceID(context.Background(), resp.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, walletmodels.TransactionStatusPending, tx.Status)
	assert.Equal(t, int64(2000), tx.AmountCents)
	assert.Equal(t, walletmodels.TransactionTypeDeposit, tx.Type)

	// Nothing is credited until the processor confirms.
	user, err := ledger.GetByTelegramID(context.Background(), testUser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.BalanceCents)

	require.Len(t, processor.checkoutCalls, 1)
	call := processor.checkoutCalls[0]
	assert.Equal(t, "https://api.example.com/api/v1/payment/callback", call.CallbackURL)
	assert.Empty(t, call.CustomerEmail)
}

func TestCreateCheckoutSendsCustomerIdentityWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Payment.SendCustomer = true

	ledger := newFakeLedger()
	processor := &fakeProcessor{}
	svc := newTestService(ledger, processor, cfg)

	_, err := svc.CreateCheckout(context.Background(), testUser, 10, "")
	require.NoError(t, err)

	require.Len(t, processor.checkoutCalls, 1)
	assert.Equal(t, "rogue@telegram.com", processor.checkoutCalls[0].CustomerEmail)
	assert.Equal(t, "Rogue", processor.checkoutCalls[0].CustomerName)
}

func TestCreateCheckoutProcessorFailureFailsDeposit(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{checkoutErr: errors.New("gateway down")}
	svc := newTestService(ledger, processor, nil)

	_, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeExternalAPI, appErr.Code)

	// The orphaned transaction must not stay pending.
	require.Len(t, ledger.transactions, 1)
	for _, tx := range ledger.transactions {
		assert.Equal(t, walletmodels.TransactionStatusFailed, tx.Status)
	}
}

func TestCallbackSettlesDepositExactlyOnce(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{}
	svc := newTestService(ledger, processor, nil)

	checkout, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	callback := &models.CallbackRequest{
		ReferenceID: checkout.ReferenceID,
		Status:      "COMPLETED",
		Amount:      20,
	}

	resp, err := svc.HandleCallback(context.Background(), callback)
	require.NoError(t, err)
	assert.Equal(t, "Callback processed successfully", resp.Message)

	user, err := ledger.GetByTelegramID(context.Background(), testUser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), user.BalanceCents)

	// A redelivered callback acknowledges without crediting again.
	resp, err = svc.HandleCallback(context.Background(), callback)
	require.NoError(t, err)
	assert.Equal(t, "Payment already processed", resp.Message)
	assert.Equal(t, int64(2000), user.BalanceCents)
}

func TestCallbackFailureStatusMarksDepositFailed(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, &fakeProcessor{}, nil)

	checkout, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	resp, err := svc.HandleCallback(context.Background(), &models.CallbackRequest{
		ReferenceID: checkout.ReferenceID,
		Status:      "FAILED",
	})
	require.NoError(t, err)
	assert.Equal(t, "Payment failure recorded", resp.Message)

	tx, err := ledger.GetByReferenceID(context.Background(), checkout.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, walletmodels.TransactionStatusFailed, tx.Status)
}

func TestCallbackUnknownReference(t *testing.T) {
	svc := newTestService(newFakeLedger(), &fakeProcessor{}, nil)

	_, err := svc.HandleCallback(context.Background(), &models.CallbackRequest{
		ReferenceID: "dep_missing",
		Status:      "COMPLETED",
		Amount:      20,
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeTransactionNotFound, appErr.Code)
}

func TestCallbackUnknownStatusIsAcknowledged(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, &fakeProcessor{}, nil)

	checkout, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	resp, err := svc.HandleCallback(context.Background(), &models.CallbackRequest{
		ReferenceID: checkout.ReferenceID,
		Status:      "PROCESSING",
	})
	require.NoError(t, err)
	assert.Equal(t, "Callback acknowledged", resp.Message)

	tx, err := ledger.GetByReferenceID(context.Background(), checkout.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, walletmodels.TransactionStatusPending, tx.Status)
}

func TestVerifySettlesConfirmedDeposit(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{verifyStatus: "COMPLETED", verifyAmount: 20}
	svc := newTestService(ledger, processor, nil)

	checkout, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	resp, err := svc.VerifyPayment(context.Background(), testUser, checkout.ReferenceID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusVerified, resp.Status)
	assert.Equal(t, 20.0, resp.Balance)
	require.NotNil(t, resp.Amount)
	assert.Equal(t, 20.0, *resp.Amount)
}

func TestVerifyAfterCallbackSkipsProcessor(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{verifyStatus: "COMPLETED", verifyAmount: 20}
	svc := newTestService(ledger, processor, nil)

	checkout, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	_, err = svc.HandleCallback(context.Background(), &models.CallbackRequest{
		ReferenceID: checkout.ReferenceID,
		Status:      "COMPLETED",
		Amount:      20,
	})
	require.NoError(t, err)

	resp, err := svc.VerifyPayment(context.Background(), testUser, checkout.ReferenceID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAlreadyProcessed, resp.Status)
	assert.Equal(t, 20.0, resp.Balance)
	assert.Equal(t, 0, processor.verifyCalls)

	user, err := ledger.GetByTelegramID(context.Background(), testUser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), user.BalanceCents)
}

func TestVerifyUnconfirmedPaymentMarksFailed(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{verifyStatus: "FAILED"}
	svc := newTestService(ledger, processor, nil)

	checkout, err := svc.CreateCheckout(context.Background(), testUser, 20, "")
	require.NoError(t, err)

	resp, err := svc.VerifyPayment(context.Background(), testUser, checkout.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, resp.Status)

	tx, err := ledger.GetByReferenceID(context.Background(), checkout.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, walletmodels.TransactionStatusFailed, tx.Status)
}

func TestVerifyUnknownUser(t *testing.T) {
	svc := newTestService(newFakeLedger(), &fakeProcessor{}, nil)

	_, err := svc.VerifyPayment(context.Background(), initdata.User{ID: 555}, "dep_abc")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeUserNotFound, appErr.Code)
}
