package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iho/esledger/internal/infrastructure/config"
	"github.com/iho/esledger/internal/infrastructure/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("EVENT_STORE_DRIVER", config.DriverMemory)
	t.Setenv("REDIS_URL", "")
	t.Setenv("RATE_LIMIT_RPS", "0")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, a.close(ctx))
	})
	return a
}

func serve(a *app, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestNewAppMemoryDriverWithoutRedis(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	require.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/ready", "").Code)
	require.Equal(t, http.StatusCreated, serve(a, http.MethodPost, "/api/v1/accounts/", `{"id":"a"}`).Code)
	require.Equal(t, http.StatusCreated, serve(a, http.MethodPost, "/api/v1/accounts/", `{"id":"b"}`).Code)
	require.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/v1/accounts/a/credits", `{"amount":3}`).Code)
	require.Equal(t, http.StatusAccepted, serve(a, http.MethodPost, "/api/v1/accounts/a/transfers", `{"destination_id":"b","amount":2}`).Code)

	require.Eventually(t, func() bool {
		var acc struct {
			CreditBalance int64 `json:"credit_balance"`
		}
		rec := serve(a, http.MethodGet, "/api/v1/accounts/b", "")
		return json.Unmarshal(rec.Body.Bytes(), &acc) == nil && acc.CreditBalance == 2
	}, 2*time.Second, 10*time.Millisecond)

	// The balance read model needs Redis.
	require.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/api/v1/accounts/a/balance", "").Code)
}

func TestNewAppWithRedisServesBalances(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	cfg.RedisPoolSize = 3
	cfg.RedisReadTimeout = 1500 * time.Millisecond

	a := newTestApp(t, cfg)
	require.Equal(t, 3, a.redisClient.Options().PoolSize)
	require.Equal(t, 1500*time.Millisecond, a.redisClient.Options().ReadTimeout)

	rec := serve(a, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"ok"`)

	require.Equal(t, http.StatusCreated, serve(a, http.MethodPost, "/api/v1/accounts/", `{"id":"a"}`).Code)
	require.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/v1/accounts/a/credits", `{"amount":7}`).Code)

	require.Eventually(t, func() bool {
		var b struct {
			Balance int64 `json:"balance"`
			Version int64 `json:"version"`
		}
		rec := serve(a, http.MethodGet, "/api/v1/accounts/a/balance", "")
		return rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &b) == nil && b.Balance == 7 && b.Version == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewAppFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := newApp(context.Background(), cfg, zerolog.Nop(), logging.Discard())
	require.Error(t, err)
}
