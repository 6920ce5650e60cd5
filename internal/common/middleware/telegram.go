package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "proxy-store-backend/internal/common/errors"
	"proxy-store-backend/internal/common/logger"
)

// UserCtxKey is the gin context key under which the authenticated Telegram
// user (initdata.User) is stored.
const UserCtxKey = "user"

// TelegramInitData validates Telegram Mini App init-data and stores the parsed
// user in the request context. The raw init-data string is looked up in order:
//
//  1. Header "init_data"
//  2. Header "X-Telegram-Init-Data"
//  3. Query parameter "init_data"
//  4. JSON body field "init_data" (body is restored for downstream binding)
//
// Validation fails closed: a missing token, parse error, signature mismatch or
// an auth_date older than expIn all yield 401. expIn == 0 disables the
// freshness check.
func TelegramInitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			logger.Error().Msg("BOT_TOKEN is not configured, refusing to authenticate")
			RespondError(c, apperrors.New(apperrors.ErrCodeInternal, "Server configuration error"))
			return
		}

		raw := extractInitData(c)
		if raw == "" {
			RespondError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Telegram init data is required"))
			return
		}

		if err := initdata.Validate(raw, token, expIn); err != nil {
			RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Unauthorized: invalid Telegram init data"))
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Unauthorized: malformed Telegram init data"))
			return
		}
		if parsed.User.ID == 0 {
			RespondError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "User data not found in init data"))
			return
		}

		c.Set(UserCtxKey, parsed.User)
		c.Next()
	}
}

// MustUser returns the authenticated Telegram user or aborts with 401.
func MustUser(c *gin.Context) (initdata.User, bool) {
	v, exists := c.Get(UserCtxKey)
	if !exists {
		RespondError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Unauthorized: Telegram init data required"))
		return initdata.User{}, false
	}
	user, ok := v.(initdata.User)
	if !ok {
		RespondError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "Invalid user data format"))
		return initdata.User{}, false
	}
	return user, true
}

func extractInitData(c *gin.Context) string {
	if v := c.GetHeader("init_data"); v != "" {
		return v
	}
	if v := c.GetHeader("X-Telegram-Init-Data"); v != "" {
		return v
	}
	if v := c.Query("init_data"); v != "" {
		return v
	}
	return initDataFromBody(c)
}

// initDataFromBody peeks into a JSON request body for an init_data field and
// restores the body so handlers can still bind it.
func initDataFromBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return ""
	}

	data, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return ""
	}

	var probe struct {
		InitData string `json:"init_data"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.InitData
}
