package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewHTTPServer(Options{Address: "127.0.0.1:0"}, logging.NewNop(), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewHTTPServer(Options{Address: "127.0.0.1:99999"}, logging.NewNop(), nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Error(t, srv.Run(ctx))
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("db down")
	srv := NewHTTPServer(Options{}, logging.NewNop(), nil, func(context.Context) error { return ready }, metrics.New())
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `vidtube_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeEnvelope(t, rec).Message)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.RateLimitPerMinute = 2 })

	var last int
	for i := 0; i < 3; i++ {
		rec := env.do(jsonRequest(t, "/api/v1/users/login", map[string]string{"username": "x", "password": "y"}))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.AllowedOrigins = []string{"http://localhost:5173"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := env.do(req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAccessTokenExtraction(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"cookie wins", "c-token", "Bearer h-token", "c-token"},
		{"bearer header", "", "Bearer h-token", "h-token"},
		{"lowercase scheme", "", "bearer h-token", "h-token"},
		{"other scheme", "", "Basic abc", ""},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, accessToken(r))
		})
	}
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite("lax"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite(""))
}

func TestOptionsFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CookieSameSite = "strict"

	o := OptionsFrom(cfg, "/tmp/up")
	assert.Equal(t, ":8000", o.Address)
	assert.Equal(t, "/tmp/up", o.UploadDir)
	assert.Equal(t, cfg.MaxUploadSize, o.MaxUploadSize)
	assert.Equal(t, 100, o.RateLimitPerMinute)
	assert.Equal(t, []string{"http://localhost:5173"}, o.AllowedOrigins)
	assert.True(t, o.Cookies.Secure)
	assert.Equal(t, http.SameSiteStrictMode, o.Cookies.SameSite)
	assert.Equal(t, 15*time.Minute, o.Cookies.AccessTTL)
	assert.Equal(t, 240*time.Hour, o.Cookies.RefreshTTL)
}
