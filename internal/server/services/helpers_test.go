package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/assets"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

func testSessionConfig() SessionConfig {
	return SessionConfig{
		AccessTokenSecret:  []byte("access-secret"),
		RefreshTokenSecret: []byte("refresh-secret"),
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	}
}

func requireAppError(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, err, kind)
	assert.Equal(t, msg, appErr.Message)
}

// --- fakes ---

type fakeUsersRepo struct {
	mu sync.Mutex

	findOneOut *models.User
	findOneErr error

	findByIDOut *models.User
	findByIDErr error

	createOut *models.User
	createErr error

	setErr  error
	swapErr error

	findOneCalls int
	createCalls  int
	setCalls     int
	swapCalls    int
	lastSet      *string
	lastCreated  *models.User
}

func (f *fakeUsersRepo) FindOne(ctx context.Context, lookup users.Lookup) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findOneCalls++
	if f.findOneErr != nil {
		return nil, f.findOneErr
	}
	return f.findOneOut, nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string, projection users.Projection) (*models.User, error) {
	if f.findByIDErr != nil {
		return nil, f.findByIDErr
	}
	return f.findByIDOut, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreated = u
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	c := *u
	c.ID = "u1"
	return &c, nil
}

func (f *fakeUsersRepo) SetRefreshToken(ctx context.Context, id string, token *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.lastSet = token
	return f.setErr
}

func (f *fakeUsersRepo) SwapRefreshToken(ctx context.Context, id string, expected, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapCalls++
	return f.swapErr
}

type fakeHasher struct {
	hashErr error
}

func (h fakeHasher) Hash(plain string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hash:" + plain, nil
}

func (h fakeHasher) Verify(plain, hash string) bool {
	return hash == "hash:"+plain
}

type fakeCodec struct {
	signErr   error
	verifyOut *auth.Claims
	verifyErr error
	signs     int
}

func (c *fakeCodec) Sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	if c.signErr != nil {
		return "", c.signErr
	}
	c.signs++
	return string(secret) + ":" + userID + ":" + strconv.Itoa(c.signs), nil
}

func (c *fakeCodec) Verify(token string, secret []byte) (*auth.Claims, error) {
	if c.verifyErr != nil {
		return nil, c.verifyErr
	}
	return c.verifyOut, nil
}

// fakeUploader maps local paths to URLs. Unknown paths fail.
type fakeUploader struct {
	mu    sync.Mutex
	urls  map[string]string
	calls []string
}

func newFakeUploader(urls map[string]string) *fakeUploader {
	return &fakeUploader{urls: urls}
}

func (u *fakeUploader) Upload(ctx context.Context, localPath string) (*assets.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, localPath)
	url, ok := u.urls[localPath]
	if !ok {
		return nil, errors.New("upload failed")
	}
	return &assets.UploadResult{URL: url, Key: localPath}, nil
}

func defaultUploader() *fakeUploader {
	return newFakeUploader(map[string]string{
		"/tmp/avatar.png": "http://cdn.local/vidtube/images/avatar.png",
		"/tmp/cover.png":  "http://cdn.local/vidtube/images/cover.png",
	})
}

// newFakeManager builds a manager over fakes.
func newFakeManager(repo users.Repository, codec auth.TokenCodec, up assets.Uploader) *SessionManager {
	return NewSessionManager(testSessionConfig(), repo, fakeHasher{}, codec, up, logging.NewNop(), nil)
}

// newMemoryManager builds a manager over the in-memory store with real
// bcrypt and JWT.
func newMemoryManager(t *testing.T) (*SessionManager, *users.MemoryRepository, *metrics.Metrics) {
	t.Helper()
	repo := users.NewMemoryRepository()
	m := metrics.New()
	s := NewSessionManager(testSessionConfig(), repo, auth.NewBcryptHasher(bcrypt.MinCost),
		auth.NewJWTCodec(), defaultUploader(), logging.NewNop(), m)
	return s, repo, m
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Username:   "alice",
		Email:      "a@x.com",
		FullName:   "Alice A",
		Password:   "p1",
		AvatarPath: "/tmp/avatar.png",
	}
}
