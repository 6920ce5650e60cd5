package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/middleware"
	"proxy-store-backend/internal/common/validation"
	paymentservice "proxy-store-backend/internal/features/payment/service"
	"proxy-store-backend/internal/features/wallet/models"
	"proxy-store-backend/internal/features/wallet/service"
)

type WalletHandler struct {
	service  service.WalletService
	payments paymentservice.PaymentService
}

func NewWalletHandler(service service.WalletService, payments paymentservice.PaymentService) *WalletHandler {
	return &WalletHandler{service: service, payments: payments}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet")
	{
		wallet.GET("/balance", h.getBalance)
		wallet.GET("/transactions", h.listTransactions)
		wallet.POST("/deposit", h.deposit)
	}
}

// @Summary Get wallet balance
// @Description Returns the wallet balance, creating the user lazily on first contact.
// @Tags wallet
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.BalanceResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) getBalance(c *gin.Context) {
	tgUser, ok := middleware.MustUser(c)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), tgUser)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// @Summary List wallet transactions
// @Description Returns the user's ledger entries, newest first.
// @Tags wallet
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Maximum entries to return" default(50)
// @Success 200 {array} models.TransactionResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) listTransactions(c *gin.Context) {
	tgUser, ok := middleware.MustUser(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	transactions, err := h.service.ListTransactions(c.Request.Context(), tgUser, limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactions)
}

type depositRequest struct {
	InitData string  `json:"init_data"`
	Amount   float64 `json:"amount"`
}

// @Summary Create deposit intent
// @Description Creates a pending deposit and returns the checkout URL for it.
// @Tags wallet
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param request body depositRequest true "Deposit parameters"
// @Success 200 {object} models.DepositResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /wallet/deposit [post]
func (h *WalletHandler) deposit(c *gin.Context) {
	tgUser, ok := middleware.MustUser(c)
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}
	if err := validation.ValidateAmount(req.Amount); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("amount", err.Error()))
		return
	}

	checkout, err := h.payments.CreateCheckout(c.Request.Context(), tgUser, req.Amount, "")
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DepositResponse{
		CheckoutURL: checkout.CheckoutURL,
		ReferenceID: checkout.ReferenceID,
		Amount:      checkout.Amount,
	})
}
