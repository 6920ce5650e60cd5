package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"proxy-store-backend/internal/common/config"
	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/logger"
	"proxy-store-backend/internal/common/metrics"
	"proxy-store-backend/internal/features/payment/models"
	"proxy-store-backend/internal/features/payment/repository"
	walletmodels "proxy-store-backend/internal/features/wallet/models"
	walletrepo "proxy-store-backend/internal/features/wallet/repository"
	"proxy-store-backend/internal/platform/rupantor"
)

// ProcessorClient is the subset of the RupantorPay client the service needs.
type ProcessorClient interface {
	CreateCheckout(ctx context.Context, req rupantor.CheckoutRequest) (*rupantor.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, referenceID string) (*rupantor.VerifyResponse, error)
}

// PaymentService bridges the wallet ledger and the external processor. The
// callback and verify paths both funnel into the repository's idempotent
// settle operation, so duplicate delivery credits a reference at most once.
type PaymentService interface {
	CreateCheckout(ctx context.Context, tgUser initdata.User, amount float64, description string) (*models.CheckoutResponse, error)
	HandleCallback(ctx context.Context, req *models.CallbackRequest) (*models.CallbackResponse, error)
	VerifyPayment(ctx context.Context, tgUser initdata.User, referenceID string) (*models.VerifyResponse, error)
}

type paymentService struct {
	users        walletrepo.UserRepository
	transactions walletrepo.TransactionRepository
	payments     repository.Repository
	processor    ProcessorClient
	cfg          *config.Config
}

func NewPaymentService(
	users walletrepo.UserRepository,
	transactions walletrepo.TransactionRepository,
	payments repository.Repository,
	processor ProcessorClient,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		users:        users,
		transactions: transactions,
		payments:     payments,
		processor:    processor,
		cfg:          cfg,
	}
}

func (s *paymentService) CreateCheckout(ctx context.Context, tgUser initdata.User, amount float64, description string) (*models.CheckoutResponse, error) {
	user, err := s.users.GetOrCreate(ctx, &walletmodels.User{
		TelegramID: tgUser.ID,
		Username:   tgUser.Username,
		FirstName:  tgUser.FirstName,
		LastName:   tgUser.LastName,
		PhotoURL:   tgUser.PhotoURL,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to load user")
	}

	if description == "" {
		description = fmt.Sprintf("Deposit for %.2f USD", amount)
	}

	referenceID := "dep_" + uuid.NewString()
	tx := &walletmodels.Transaction{
		UserID:      user.ID,
		Type:        walletmodels.TransactionTypeDeposit,
		AmountCents: walletmodels.DollarsToCents(amount),
		Description: description,
		ReferenceID: referenceID,
		Status:      walletmodels.TransactionStatusPending,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to create deposit transaction")
	}

	req := rupantor.CheckoutRequest{
		Amount:      amount,
		Description: description,
		SuccessURL:  s.cfg.Payment.SuccessURL,
		CancelURL:   s.cfg.Payment.CancelURL,
		CallbackURL: s.cfg.Payment.CallbackURL,
		ReferenceID: referenceID,
	}
	if s.cfg.Payment.SendCustomer {
		req.CustomerEmail, req.CustomerName = s.customerIdentity(user)
	}

	checkout, err := s.processor.CreateCheckout(ctx, req)
	if err != nil {
		// The checkout session never existed, so there is nothing left to
		// reconcile for this reference.
		if failErr := s.payments.MarkFailed(ctx, referenceID); failErr != nil {
			logger.Error().Err(failErr).Str("reference_id", referenceID).
				Msg("Failed to fail orphaned deposit transaction")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "Failed to create payment checkout")
	}

	return &models.CheckoutResponse{
		CheckoutURL: checkout.CheckoutURL,
		ReferenceID: referenceID,
		Amount:      amount,
	}, nil
}

func (s *paymentService) HandleCallback(ctx context.Context, req *models.CallbackRequest) (*models.CallbackResponse, error) {
	switch {
	case isSuccessStatus(req.Status):
		result, err := s.payments.Settle(ctx, req.ReferenceID, walletmodels.DollarsToCents(req.Amount))
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotFound) {
				return nil, apperrors.New(apperrors.ErrCodeTransactionNotFound, "Transaction not found").
					WithDetail("reference_id", req.ReferenceID)
			}
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to settle transaction")
		}

		if result.Outcome == repository.OutcomeAlreadyProcessed {
			return &models.CallbackResponse{Message: "Payment already processed"}, nil
		}

		metrics.PaymentsSettled.WithLabelValues("callback").Inc()
		logger.Info().
			Str("reference_id", req.ReferenceID).
			Int64("user_id", result.UserID).
			Int64("amount_cents", result.AmountCents).
			Msg("Deposit settled via callback")
		return &models.CallbackResponse{Message: "Callback processed successfully"}, nil

	case isFailureStatus(req.Status):
		if err := s.payments.MarkFailed(ctx, req.ReferenceID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to update transaction")
		}
		return &models.CallbackResponse{Message: "Payment failure recorded"}, nil

	default:
		return &models.CallbackResponse{Message: "Callback acknowledged"}, nil
	}
}

func (s *paymentService) VerifyPayment(ctx context.Context, tgUser initdata.User, referenceID string) (*models.VerifyResponse, error) {
	user, err := s.users.GetByTelegramID(ctx, tgUser.ID)
	if err != nil {
		if errors.Is(err, walletrepo.ErrUserNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeUserNotFound, "User not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to load user")
	}

	// Fast path: the reference was already reconciled, skip the processor
	// round-trip.
	payment, err := s.payments.GetPayment(ctx, referenceID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to check payment")
	}
	if payment != nil {
		return &models.VerifyResponse{
			Status:  models.StatusAlreadyProcessed,
			Message: "Payment already processed",
			Balance: walletmodels.CentsToDollars(user.BalanceCents),
		}, nil
	}

	verification, err := s.processor.VerifyPayment(ctx, referenceID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "Failed to verify payment")
	}

	if !isSuccessStatus(verification.Status) {
		if err := s.payments.MarkFailed(ctx, referenceID); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to update transaction")
		}
		return &models.VerifyResponse{
			Status:  models.StatusFailed,
			Message: "Payment verification failed",
			Balance: walletmodels.CentsToDollars(user.BalanceCents),
		}, nil
	}

	result, err := s.payments.Settle(ctx, referenceID, walletmodels.DollarsToCents(verification.Amount))
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeTransactionNotFound, "Transaction not found").
				WithDetail("reference_id", referenceID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to settle transaction")
	}

	if result.Outcome == repository.OutcomeAlreadyProcessed {
		return &models.VerifyResponse{
			Status:  models.StatusAlreadyProcessed,
			Message: "Payment already processed",
			Balance: walletmodels.CentsToDollars(result.BalanceCents),
		}, nil
	}

	metrics.PaymentsSettled.WithLabelValues("verify").Inc()
	logger.Info().
		Str("reference_id", referenceID).
		Int64("user_id", result.UserID).
		Int64("amount_cents", result.AmountCents).
		Msg("Deposit settled via verification")

	amount := walletmodels.CentsToDollars(result.AmountCents)
	return &models.VerifyResponse{
		Status:  models.StatusVerified,
		Message: "Payment verified and balance updated",
		Balance: walletmodels.CentsToDollars(result.BalanceCents),
		Amount:  &amount,
	}, nil
}

// customerIdentity synthesizes the processor-facing customer fields from the
// Telegram profile.
func (s *paymentService) customerIdentity(user *walletmodels.User) (email, name string) {
	if user.Username != "" {
		email = fmt.Sprintf("%s@%s", user.Username, s.cfg.Payment.CustomerEmailDomain)
	} else {
		email = fmt.Sprintf("user%d@%s", user.ID, s.cfg.Payment.CustomerEmailDomain)
	}

	name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = "Telegram User"
	}
	return email, name
}

func isSuccessStatus(status string) bool {
	switch strings.ToLower(status) {
	case "completed", "success":
		return true
	}
	return false
}

func isFailureStatus(status string) bool {
	switch strings.ToLower(status) {
	case "failed", "cancelled", "canceled":
		return true
	}
	return false
}
