package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/metrics"
	"proxy-store-backend/internal/common/middleware"
	"proxy-store-backend/internal/common/replay"
	"proxy-store-backend/internal/common/validation"
	"proxy-store-backend/internal/features/payment/models"
	"proxy-store-backend/internal/features/payment/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body, keyed
// by the shared webhook secret.
const SignatureHeader = "X-Webhook-Signature"

type PaymentHandler struct {
	service       service.PaymentService
	guard         *replay.Guard
	webhookSecret string
}

func NewPaymentHandler(service service.PaymentService, guard *replay.Guard, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		service:       service,
		guard:         guard,
		webhookSecret: webhookSecret,
	}
}

// RegisterRoutes mounts the init-data protected payment endpoints.
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payment := router.Group("/payment")
	{
		payment.POST("/checkout", h.createCheckout)
		payment.POST("/verify", h.verifyPayment)
	}
}

// RegisterPublicRoutes mounts the processor-facing webhook, which is
// authenticated by signature instead of init-data.
func (h *PaymentHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/payment/callback", h.paymentCallback)
}

// @Summary Create payment checkout
// @Description Creates a pending deposit transaction and a RupantorPay checkout session.
// @Tags payments
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param request body models.CheckoutRequest true "Checkout parameters"
// @Success 200 {object} models.CheckoutResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /payment/checkout [post]
func (h *PaymentHandler) createCheckout(c *gin.Context) {
	tgUser, ok := middleware.MustUser(c)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}
	if err := validation.ValidateAmount(req.Amount); err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("amount", err.Error()))
		return
	}

	resp, err := h.service.CreateCheckout(c.Request.Context(), tgUser, req.Amount, req.Description)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Payment callback
// @Description Processor-initiated webhook carrying the final payment status. Requires a valid body signature.
// @Tags payments
// @Accept json
// @Produce json
// @Param request body models.CallbackRequest true "Callback payload"
// @Success 200 {object} models.CallbackResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /payment/callback [post]
func (h *PaymentHandler) paymentCallback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Failed to read request body"))
		return
	}

	if !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		middleware.RespondError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Invalid callback signature"))
		return
	}

	var req models.CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}
	if req.ReferenceID == "" {
		middleware.RespondError(c, apperrors.NewValidationError("reference_id", "required"))
		return
	}

	// Collapse concurrent duplicate deliveries of the same status; a later
	// redelivery falls through to the idempotent settle, which reports
	// already-processed.
	key := replay.Key("payment.callback", 0, req.ReferenceID+":"+req.Status)
	if err := h.guard.Acquire(c.Request.Context(), key); err != nil {
		if errors.Is(err, replay.ErrReplay) {
			metrics.ReplaysRejected.Inc()
			middleware.RespondError(c, apperrors.New(apperrors.ErrCodeReplayDetected, "Request already processed (possible replay attack)"))
			return
		}
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Replay guard unavailable"))
		return
	}
	defer h.guard.Release(c.Request.Context(), key)

	resp, err := h.service.HandleCallback(c.Request.Context(), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Verify payment
// @Description Polls the processor for a reference and settles the deposit on success.
// @Tags payments
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param request body models.VerifyRequest true "Verification parameters"
// @Success 200 {object} models.VerifyResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /payment/verify [post]
func (h *PaymentHandler) verifyPayment(c *gin.Context) {
	tgUser, ok := middleware.MustUser(c)
	if !ok {
		return
	}

	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}
	if req.ReferenceID == "" {
		middleware.RespondError(c, apperrors.NewValidationError("reference_id", "required"))
		return
	}

	key := replay.Key("payment.verify", tgUser.ID, req.ReferenceID)
	if err := h.guard.Acquire(c.Request.Context(), key); err != nil {
		if errors.Is(err, replay.ErrReplay) {
			metrics.ReplaysRejected.Inc()
			middleware.RespondError(c, apperrors.New(apperrors.ErrCodeReplayDetected, "Request already processed (possible replay attack)"))
			return
		}
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Replay guard unavailable"))
		return
	}
	defer h.guard.Release(c.Request.Context(), key)

	resp, err := h.service.VerifyPayment(c.Request.Context(), tgUser, req.ReferenceID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// verifySignature checks the webhook HMAC. An empty configured secret skips
// the check so local processors without signing still work.
func (h *PaymentHandler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

