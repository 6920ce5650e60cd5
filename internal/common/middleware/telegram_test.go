package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const testBotToken = "7342037359:AAF0aAlvEEmzYlPhYsqdLYK9pM6W8AL_Wr0"

func signedInitData(t *testing.T, token string, user initdata.User, authDate time.Time) string {
	t.Helper()

	userJSON, err := json.Marshal(user)
	require.NoError(t, err)

	payload := map[string]string{
		"query_id": "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":     string(userJSON),
	}
	hash := initdata.Sign(payload, token, authDate)

	values := url.Values{}
	for k, v := range payload {
		values.Set(k, v)
	}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("hash", hash)
	return values.Encode()
}

func newAuthRouter(token string, expIn time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TelegramInitData(token, expIn))
	router.POST("/protected", func(c *gin.Context) {
		user, ok := MustUser(c)
		if !ok {
			return
		}

		var body struct {
			Amount float64 `json:"amount"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "amount": body.Amount})
	})
	return router
}

func TestTelegramInitDataAcceptsValidHeader(t *testing.T) {
	router := newAuthRouter(testBotToken, 24*time.Hour)
	raw := signedInitData(t, testBotToken, initdata.User{ID: 99281932, Username: "rogue", FirstName: "Rogue"}, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/protected", strings.NewReader(`{"amount": 20}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("init_data", raw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID     int64   `json:"id"`
		Amount float64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(99281932), resp.ID)
	// Binding must still see the body after the middleware peeked at it.
	assert.Equal(t, 20.0, resp.Amount)
}

func TestTelegramInitDataReadsBodyField(t *testing.T) {
	router := newAuthRouter(testBotToken, 24*time.Hour)
	raw := signedInitData(t, testBotToken, initdata.User{ID: 7, FirstName: "Body"}, time.Now())

	payload, err := json.Marshal(map[string]interface{}{
		"init_data": raw,
		"amount":    5.5,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/protected", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTelegramInitDataRejectsTamperedPayload(t *testing.T) {
	router := newAuthRouter(testBotToken, 24*time.Hour)
	raw := signedInitData(t, testBotToken, initdata.User{ID: 99281932, Username: "rogue"}, time.Now())
	tampered := strings.Replace(raw, "rogue", "admin", 1)

	req := httptest.NewRequest(http.MethodPost, "/protected", strings.NewReader(`{"amount": 20}`))
	req.Header.Set("init_data", tampered)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTelegramInitDataRejectsWrongBotToken(t *testing.T) {
	router := newAuthRouter(testBotToken, 24*time.Hour)
	raw := signedInitData(t, "1111111111:other-bot-token", initdata.User{ID: 42}, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/protected", strings.NewReader(`{}`))
	req.Header.Set("init_data", raw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTelegramInitDataRejectsStaleAuthDate(t *testing.T) {
	router := newAuthRouter(testBotToken, time.Hour)
	raw := signedInitData(t, testBotToken, initdata.User{ID: 42}, time.Now().Add(-2*time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/protected", strings.NewReader(`{}`))
	req.Header.Set("init_data", raw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTelegramInitDataRejectsMissingInitData(t *testing.T) {
	router := newAuthRouter(testBotToken, 24*time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/protected", strings.NewReader(`{"amount": 20}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTelegramInitDataRejectsMissingToken(t *testing.T) {
	router := newAuthRouter("", 24*time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/protected", strings.NewReader(`{}`))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
