package service

import (
	"context"
	"errors"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/features/wallet/models"
	"proxy-store-backend/internal/features/wallet/repository"
)

// WalletService exposes balance reads and the transaction history. Users are
// created lazily on first contact with their wallet.
type WalletService interface {
	GetBalance(ctx context.Context, tgUser initdata.User) (*models.BalanceResponse, error)
	GetOrCreateUser(ctx context.Context, tgUser initdata.User) (*models.User, error)
	ListTransactions(ctx context.Context, tgUser initdata.User, limit int) ([]*models.TransactionResponse, error)
}

type walletService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
}

func NewWalletService(users repository.UserRepository, transactions repository.TransactionRepository) WalletService {
	return &walletService{users: users, transactions: transactions}
}

func (s *walletService) GetOrCreateUser(ctx context.Context, tgUser initdata.User) (*models.User, error) {
	user, err := s.users.GetOrCreate(ctx, &models.User{
		TelegramID: tgUser.ID,
		Username:   tgUser.Username,
		FirstName:  tgUser.FirstName,
		LastName:   tgUser.LastName,
		PhotoURL:   tgUser.PhotoURL,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to load user")
	}
	return user, nil
}

func (s *walletService) GetBalance(ctx context.Context, tgUser initdata.User) (*models.BalanceResponse, error) {
	user, err := s.GetOrCreateUser(ctx, tgUser)
	if err != nil {
		return nil, err
	}

	return &models.BalanceResponse{
		Balance:   models.CentsToDollars(user.BalanceCents),
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

func (s *walletService) ListTransactions(ctx context.Context, tgUser initdata.User, limit int) ([]*models.TransactionResponse, error) {
	user, err := s.users.GetByTelegramID(ctx, tgUser.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return []*models.TransactionResponse{}, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to load user")
	}

	list, err := s.transactions.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "Failed to list transactions")
	}

	out := make([]*models.TransactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, &models.TransactionResponse{
			ID:          t.ID,
			Type:        string(t.Type),
			Amount:      models.CentsToDollars(t.AmountCents),
			Description: t.Description,
			ReferenceID: t.ReferenceID,
			Status:      string(t.Status),
			CreatedAt:   t.CreatedAt,
		})
	}
	return out, nil
}
