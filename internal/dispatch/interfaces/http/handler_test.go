package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/application"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/messaging"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/notifier"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/persistence"
	"github.com/wyfcoding/orderdispatch/pkg/db"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "http.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, persistence.AutoMigrate(d.DB))

	seq := 0
	svc := application.NewDispatchService(application.Deps{
		Tx:       d,
		Traders:  persistence.NewTraderRepository(d.DB),
		Orders:   persistence.NewOrderRepository(d.DB),
		Payouts:  persistence.NewPayoutRepository(d.DB),
		Tickets:  persistence.NewTicketRepository(d.DB),
		Events:   messaging.NewOutboxPublisher(outbox.NewPublisher(outbox.NewManager(d.DB, nil)), "dispatch"),
		Notifier: notifier.NewLogNotifier(),
		NewNo: func(prefix string) string {
			seq++
			return fmt.Sprintf("%s%d", prefix, seq)
		},
		Timeout: 5 * time.Second,
	})

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// readyTrader 注册交易员并开启接单
func readyTrader(t *testing.T, r http.Handler, handle string) {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/traders", fmt.Sprintf(`{"channel_handle":%q}`, handle))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(r, http.MethodPut, "/api/v1/traders/1/requisites", `{"requisites":"card 4242"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(r, http.MethodPut, "/api/v1/traders/1/enabled", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMerchantOrderNoTrader(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/merchant/order", `{"id":"m-1","amount":100,"currency":"USDT"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no_trader", decodeStatus(t, w)["status"])
}

func TestMerchantOrderFlow(t *testing.T) {
	r := newRouter(t)
	readyTrader(t, r, "chat-1")

	w := do(r, http.MethodPost, "/merchant/order", `{"id":"m-1","amount":"100.5","currency":"usdt"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeStatus(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["order_id"])

	w = do(r, http.MethodPost, "/merchant/order", `{"id":"m-1","amount":100.5,"currency":"USDT"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", decodeStatus(t, w)["status"])

	w = do(r, http.MethodPost, "/merchant/order", `{"id":"m-2","amount":0,"currency":"USDT"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/merchant/order", `{"amount":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/orders/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"new"`)
	assert.Contains(t, w.Body.String(), `"currency":"USDT"`)

	w = do(r, http.MethodPost, "/api/v1/orders/1/transition", `{"status":"done"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/orders/1/transition", `{"status":"in_work"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"in_work"`)

	w = do(r, http.MethodPost, "/api/v1/orders/1/transition", `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/traders/1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_work":1`)

	w = do(r, http.MethodGet, "/api/v1/traders/1/orders?status=in_work&page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"merchant_order_id":"m-1"`)
}

func TestEnableWithoutRequisites(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/api/v1/traders", `{"channel_handle":"chat-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/api/v1/traders/1/enabled", `{"enabled":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPut, "/api/v1/traders/1/enabled", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/traders/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/traders/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayoutAndTicketRoutes(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/api/v1/traders", `{"channel_handle":"chat-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/traders/1/payouts", `{"amount":"-1","currency":"USDT"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/traders/1/payouts", `{"amount":"25","currency":"USDT"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/payouts/1/paid", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/payouts/1/review", `{"approve":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)

	w = do(r, http.MethodPost, "/api/v1/payouts/1/paid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"paid"`)

	w = do(r, http.MethodGet, "/api/v1/traders/1/payouts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodPost, "/api/v1/traders/1/tickets", `{"text":"missing payment"}`)
	require.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 2; i++ {
		w = do(r, http.MethodPost, "/api/v1/tickets/1/close", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"closed"`)
	}

	w = do(r, http.MethodGet, "/api/v1/traders/1/tickets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "missing payment")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrOrderNotFound), http.StatusNotFound},
		{domain.ErrDuplicateOrder, http.StatusConflict},
		{domain.ErrRequisitesMissing, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", domain.ErrUnavailable, context.DeadlineExceeded), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
