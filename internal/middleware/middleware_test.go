package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/auth"
)

func TestIPRateLimiterAllowsBurstThenRefills(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiter(1, time.Minute, 2, time.Hour, clock)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "1.1.1.1"))
	assert.True(t, limiter.Allow(ctx, "1.1.1.1"))
	assert.False(t, limiter.Allow(ctx, "1.1.1.1"), "burst exhausted")
	assert.True(t, limiter.Allow(ctx, "2.2.2.2"), "keys are independent")

	clock.Advance(time.Minute)
	assert.True(t, limiter.Allow(ctx, "1.1.1.1"))
}

func TestIPRateLimiterEvictsIdleVisitors(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute, clock)
	ctx := context.Background()

	limiter.Allow(ctx, "a")
	clock.Advance(2 * time.Minute)
	limiter.Allow(ctx, "b")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	_, ok := limiter.visitors["a"]
	assert.False(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour, clockwork.NewFakeClock())
	handler := RateLimit(limiter, "login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("203.0.113.1").Code)
	rec := send("203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"statusCode":429,"message":"too many requests, please try again later","success":false,"errors":[]}`, rec.Body.String())
	assert.Equal(t, http.StatusNoContent, send("203.0.113.2").Code)
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(req))
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := NewRedisRateLimiter(rdb, clockwork.NewFakeClock(), 1, 0, time.Minute)
	assert.True(t, limiter.Allow(context.Background(), "k"))
}

func TestRedisRateLimiterSharedWindow(t *testing.T) {
	url := os.Getenv("VIDTUBE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VIDTUBE_TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	key := "test:" + t.Name() + ":" + time.Now().Format(time.RFC3339Nano)

	first := NewRedisRateLimiter(rdb, clock, 2, 0, time.Minute)
	second := NewRedisRateLimiter(rdb, clock, 2, 0, time.Minute)

	assert.True(t, first.Allow(ctx, key))
	assert.True(t, second.Allow(ctx, key))
	assert.False(t, first.Allow(ctx, key), "instances share one budget")

	clock.Advance(time.Minute)
	assert.True(t, second.Allow(ctx, key))
}

type stubVerifier map[string]string

func (s stubVerifier) VerifyAccess(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.ActorFromContext(r.Context())
		if !ok {
			id = "anonymous"
		}
		_, _ = io.WriteString(w, id)
	})
}

func TestAuthenticatorRequired(t *testing.T) {
	authn := Authenticator{Verifier: stubVerifier{"good": "user-1", "other": "user-2"}}
	handler := authn.Required(actorEcho())

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{name: "missing", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "invalid", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, status: http.StatusOK, body: "user-1"},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "other"})
				r.Header.Set("Authorization", "Bearer good")
			},
			status: http.StatusOK,
			body:   "user-2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestAuthenticatorOptional(t *testing.T) {
	handler := Authenticator{Verifier: stubVerifier{"good": "user-1"}}.Optional(actorEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRequestLoggerKeepsIncomingRequestID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Metrics)

	var seen string
	router.Get("/videos/{videoId}", func(w http.ResponseWriter, r *http.Request) {
		seen = chi.URLParam(r, "videoId")
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/123", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123", seen)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS("https://app.example.com/")(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/videos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
