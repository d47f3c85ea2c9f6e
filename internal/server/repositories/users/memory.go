package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in a map. Reads return copies, so callers
// never observe or cause changes outside the lock.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User), now: time.Now}
}

func (r *MemoryRepository) FindOne(_ context.Context, lookup Lookup) (*models.User, error) {
	if lookup.empty() {
		return nil, common.ErrorNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if (lookup.Username != "" && u.Username == lookup.Username) ||
			(lookup.Email != "" && u.Email == lookup.Email) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id string, projection Projection) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	c := clone(u)
	if projection == ProjectionPublic {
		c.PasswordHash = ""
		c.RefreshToken = nil
	}
	return c, nil
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, common.ErrorConflict
		}
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	user.RefreshToken = nil

	r.users[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) SetRefreshToken(_ context.Context, id string, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = copyString(token)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) SwapRefreshToken(_ context.Context, id string, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	if u.RefreshToken == nil || *u.RefreshToken != expected {
		return common.ErrorConflict
	}
	u.RefreshToken = &next
	u.UpdatedAt = r.now().UTC()
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.RefreshToken = copyString(u.RefreshToken)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
