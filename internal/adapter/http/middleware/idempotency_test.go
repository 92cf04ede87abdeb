package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/iho/esledger/internal/adapter/repository/redis"
)

type fakeIdempotencyStore struct {
	checkAndSetFn func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	updateFn      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	releaseFn     func(ctx context.Context, key string) error
}

func (f *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if f.checkAndSetFn != nil {
		return f.checkAndSetFn(ctx, key, response, ttl)
	}
	return false, nil, nil
}

func (f *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, key, response, ttl)
	}
	return nil
}

func (f *fakeIdempotencyStore) Release(ctx context.Context, key string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, key)
	}
	return nil
}

func newRedisIdempotencyStore(t *testing.T) *redisrepo.IdempotencyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisrepo.NewIdempotencyStore(client)
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/a/credits", bytes.NewBufferString(`{"amount":1}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_IgnoresStoreErrors(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return false, nil, context.DeadlineExceeded
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, postWithKey("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesFailedResponses(t *testing.T) {
	var updated, released bool
	store := &fakeIdempotencyStore{
		updateFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			updated = true
			return nil
		},
		releaseFn: func(ctx context.Context, key string) error {
			released = true
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})).ServeHTTP(rr, postWithKey("key-fail"))

	if updated {
		t.Fatalf("expected error responses not to be cached")
	}
	if !released {
		t.Fatalf("expected key to be released after a failed request")
	}
}

func TestIdempotencyMiddleware_ScopesKeyByRoute(t *testing.T) {
	var seen string
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			seen = key
			return false, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store, 0, zerolog.Nop())

	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), postWithKey("abc"))

	require.Equal(t, "POST /api/v1/accounts/a/credits abc", seen)
}

func TestIdempotencyMiddleware_SkipsNonPost(t *testing.T) {
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			t.Fatal("store should not be consulted for GET")
			return false, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/a", nil)
	req.Header.Set(IdempotencyKeyHeader, "k")
	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestIdempotencyMiddleware_ReplaysStatusAndBody(t *testing.T) {
	mw := NewIdempotencyMiddleware(newRedisIdempotencyStore(t), time.Hour, zerolog.Nop())

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"transfer_id":"t-1","status":"pending"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("k1"))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postWithKey("k1"))

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusAccepted, second.Code)
	require.Equal(t, "true", second.Header().Get(IdempotencyReplayHeader))
	require.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestIdempotencyMiddleware_RetryAfterFailureRunsAgain(t *testing.T) {
	mw := NewIdempotencyMiddleware(newRedisIdempotencyStore(t), time.Hour, zerolog.Nop())

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("k2"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postWithKey("k2"))

	require.Equal(t, 2, calls)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestIdempotencyMiddleware_InFlightKeyConflicts(t *testing.T) {
	store := newRedisIdempotencyStore(t)
	_, _, err := store.CheckAndSet(context.Background(), "POST /api/v1/accounts/a/credits k3", nil, time.Hour)
	require.NoError(t, err)

	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())
	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run while the key is in flight")
	})).ServeHTTP(rr, postWithKey("k3"))

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestIdempotencyMiddleware_PanicReleasesKey(t *testing.T) {
	mw := NewIdempotencyMiddleware(newRedisIdempotencyStore(t), time.Hour, zerolog.Nop())

	calls := 0
	handler := Recovery(zerolog.Nop())(mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("k4"))
	require.Equal(t, http.StatusInternalServerError, first.Code)

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, postWithKey("k4"))

	require.Equal(t, 2, calls)
	require.Equal(t, http.StatusCreated, retry.Code)
	require.Empty(t, retry.Header().Get(IdempotencyReplayHeader))
}

func TestIdempotencyMiddleware_PanicStillPropagates(t *testing.T) {
	var released string
	store := &fakeIdempotencyStore{
		releaseFn: func(ctx context.Context, key string) error {
			released = key
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour, zerolog.Nop())
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	require.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), postWithKey("k5"))
	})
	require.Equal(t, "POST /api/v1/accounts/a/credits k5", released)
}
