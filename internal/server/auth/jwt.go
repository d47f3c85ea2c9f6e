// Package auth holds the credential primitives of the session lifecycle:
// the JWT token codec and the password hasher.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the user id. ID (jti) is random
// so two tokens minted for the same user in the same second still differ.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

type TokenCodec interface {
	Sign(userID string, secret []byte, ttl time.Duration) (string, error)
	Verify(token string, secret []byte) (*Claims, error)
}

// JWTCodec signs HS256 tokens.
type JWTCodec struct {
	now func() time.Time
}

func NewJWTCodec() *JWTCodec {
	return &JWTCodec{now: time.Now}
}

func (c *JWTCodec) Sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	jti, err := shared.MakeRandHexString(16)
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	return token.SignedString(secret)
}

// Verify checks signature, algorithm and expiry. Expired tokens give
// common.ErrTokenExpired, everything else common.ErrInvalidToken.
func (c *JWTCodec) Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
