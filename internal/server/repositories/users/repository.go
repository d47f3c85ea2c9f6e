// Package users implements the identity store: lookup, creation and the
// refresh-token field of user records, over MongoDB, PostgreSQL or memory.
package users

import (
	"context"

	"github.com/dmitrijs2005/vidtube/internal/server/models"
)

// Lookup matches a user whose username OR email equals the given value.
// Empty fields take no part in the match.
type Lookup struct {
	Username string
	Email    string
}

func (l Lookup) empty() bool {
	return l.Username == "" && l.Email == ""
}

// Projection selects which fields a read returns.
type Projection int

const (
	// ProjectionFull returns the whole record, credentials included.
	ProjectionFull Projection = iota
	// ProjectionPublic leaves PasswordHash and RefreshToken empty.
	ProjectionPublic
)

// Repository is the identity store used by the session manager.
//
// Missing records yield common.ErrorNotFound. Create reports a duplicate
// username or email as common.ErrorConflict, and so does SwapRefreshToken
// when the stored token is no longer the expected one.
type Repository interface {
	FindOne(ctx context.Context, lookup Lookup) (*models.User, error)
	FindByID(ctx context.Context, id string, projection Projection) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	SetRefreshToken(ctx context.Context, id string, token *string) error
	SwapRefreshToken(ctx context.Context, id string, expected, next string) error
}
