package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/logger"
	"proxy-store-backend/internal/common/metrics"
	"proxy-store-backend/internal/common/middleware"
	"proxy-store-backend/internal/common/replay"
	"proxy-store-backend/internal/features/proxy/models"
	"proxy-store-backend/internal/features/proxy/service"
)

type ProxyHandler struct {
	service service.ProxyService
	guard   *replay.Guard
}

func NewProxyHandler(service service.ProxyService, guard *replay.Guard) *ProxyHandler {
	return &ProxyHandler{service: service, guard: guard}
}

func (h *ProxyHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/products", h.listProducts)
	router.POST("/proxy/purchase", h.purchase)
}

// @Summary List products
// @Description Lists active proxy products with quota options and pricing.
// @Tags products
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.ProductResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /products [get]
func (h *ProxyHandler) listProducts(c *gin.Context) {
	if _, ok := middleware.MustUser(c); !ok {
		return
	}

	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// @Summary Purchase proxy package
// @Description Debits the wallet, decrements stock and issues proxy credentials as one atomic unit.
// @Tags products
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param request body models.PurchaseRequest true "Purchase parameters"
// @Success 200 {object} models.PurchaseResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /proxy/purchase [post]
func (h *ProxyHandler) purchase(c *gin.Context) {
	tgUser, ok := middleware.MustUser(c)
	if !ok {
		return
	}

	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Invalid request body"))
		return
	}
	if req.ProductID <= 0 || req.GBAmount <= 0 || req.Quantity <= 0 {
		middleware.RespondError(c, apperrors.New(apperrors.ErrCodeValidation,
			"Product ID, GB amount, and quantity are required"))
		return
	}

	// The purchase request carries no client reference id, so the identifier
	// is derived from the order parameters: a retried submission of the same
	// order within the retention window is rejected as a replay.
	idemKey := strconv.FormatInt(req.ProductID, 10) + ":" +
		strconv.FormatInt(req.GBAmount, 10) + ":" + strconv.Itoa(req.Quantity)
	key := replay.Key("proxy.purchase", tgUser.ID, idemKey)
	if err := h.guard.Acquire(c.Request.Context(), key); err != nil {
		if errors.Is(err, replay.ErrReplay) {
			metrics.ReplaysRejected.Inc()
			middleware.RespondError(c, apperrors.New(apperrors.ErrCodeReplayDetected, "Request already processed (possible replay attack)"))
			return
		}
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Replay guard unavailable"))
		return
	}

	resp, err := h.service.Purchase(c.Request.Context(), tgUser, req.ProductID, req.GBAmount, req.Quantity)
	if err != nil {
		// Failed purchases may be retried immediately.
		h.guard.Release(c.Request.Context(), key)
		middleware.RespondError(c, err)
		return
	}

	if err := h.guard.MarkProcessed(c.Request.Context(), key); err != nil {
		// The purchase is applied; a failed marker only weakens replay
		// detection, it must not fail the request.
		logger.Warn().Err(err).Msg("Failed to mark purchase request processed")
	}

	c.JSON(http.StatusOK, resp)
}
