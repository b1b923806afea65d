package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func getHealth(t *testing.T, checks map[string]func(context.Context) error) (int, map[string]any) {
	t.Helper()
	router := gin.New()
	router.GET("/health", healthHandler("dispatcher", checks))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthAllDependenciesUp(t *testing.T) {
	ok := func(context.Context) error { return nil }
	code, body := getHealth(t, map[string]func(context.Context) error{"database": ok, "redis": ok})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"database": "ok", "redis": "ok"}, body["dependencies"])
}

func TestHealthRedisDown(t *testing.T) {
	code, body := getHealth(t, map[string]func(context.Context) error{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["database"])
	assert.Equal(t, "dial tcp: connection refused", deps["redis"])
}
