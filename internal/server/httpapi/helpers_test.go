package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/assets"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// recordingUploader reads the spooled file, then removes it like the S3
// uploader does.
type recordingUploader struct {
	mu       sync.Mutex
	contents []string
}

func (u *recordingUploader) Upload(ctx context.Context, path string) (*assets.UploadResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_ = os.Remove(path)

	u.mu.Lock()
	u.contents = append(u.contents, string(b))
	u.mu.Unlock()

	return &assets.UploadResult{URL: "http://cdn.local/vidtube/" + filepath.Base(path), Key: filepath.Base(path)}, nil
}

type testEnv struct {
	handler   http.Handler
	uploadDir string
	uploader  *recordingUploader
	repo      *users.MemoryRepository
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()

	repo := users.NewMemoryRepository()
	up := &recordingUploader{}
	m := metrics.New()
	sessions := services.NewSessionManager(services.SessionConfig{
		AccessTokenSecret:  []byte("access-secret"),
		RefreshTokenSecret: []byte("refresh-secret"),
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	}, repo, auth.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTCodec(), up, logging.NewNop(), m)

	opts := Options{
		Address:        "127.0.0.1:0",
		RequestTimeout: 5 * time.Second,
		UploadDir:      t.TempDir(),
		MaxUploadSize:  1 << 20,
		Cookies: CookieConfig{
			Secure:     true,
			SameSite:   http.SameSiteLaxMode,
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 240 * time.Hour,
		},
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	srv := NewHTTPServer(opts, logging.NewNop(), sessions, nil, m)
	return &testEnv{handler: srv.Handler(), uploadDir: opts.UploadDir, uploader: up, repo: repo}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func aliceFields() map[string]string {
	return map[string]string{
		"username": "Alice",
		"email":    "a@x.com",
		"fullName": "Alice A",
		"password": "p1",
	}
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"), rec.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, rec.Code, env.StatusCode)
	return env
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
