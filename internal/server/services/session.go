// Package services contains server-side business logic. This file implements
// SessionManager, which handles registration, login, logout and rotation of
// the server-stored refresh token.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/assets"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
)

// Client-facing messages.
const (
	MsgAllFieldsRequired    = "All fields are required."
	MsgUserExists           = "User with username or email already exists."
	MsgAvatarRequired       = "Avatar file is required."
	MsgRegisterFailed       = "Something went wrong while registering the user."
	MsgPasswordTooLong      = "Password is too long."
	MsgIdentifierRequired   = "username or email is required"
	MsgUserNotFound         = "User does not exist"
	MsgInvalidCredentials   = "Invalid user credentials"
	MsgUnauthorizedRequest  = "unauthorized request"
	MsgInvalidRefreshToken  = "Invalid refresh token"
	MsgRefreshTokenUsed     = "Refresh token is expired or used"
	MsgInvalidAccessToken   = "Invalid access token"
	MsgTokenIssueFailed     = "Something went wrong while generating refresh and access token"
	MsgSessionUpdateFailed  = "Something went wrong while updating the session"
	MsgIdentityStoreFailure = "Something went wrong while reading the user"
)

// Operation names used for metrics and logs.
const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpLogout       = "logout"
	OpRefresh      = "refresh"
	OpAuthenticate = "authenticate"
)

// SessionConfig carries the signing secrets and token lifetimes.
type SessionConfig struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

func SessionConfigFrom(cfg *config.Config) SessionConfig {
	return SessionConfig{
		AccessTokenSecret:  []byte(cfg.AccessTokenSecret),
		RefreshTokenSecret: []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:     cfg.AccessTokenValidityDuration,
		RefreshTokenTTL:    cfg.RefreshTokenValidityDuration,
	}
}

type RegisterInput struct {
	Username string `validate:"notblank"`
	Email    string `validate:"notblank"`
	FullName string `validate:"notblank"`
	Password string `validate:"notblank"`
	// AvatarPath and CoverImagePath point at spooled local files.
	AvatarPath     string
	CoverImagePath string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

// SessionManager implements the auth lifecycle. Every error it returns is a
// *common.AppError.
type SessionManager struct {
	cfg      SessionConfig
	users    users.Repository
	hasher   auth.PasswordHasher
	codec    auth.TokenCodec
	uploader assets.Uploader
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// NewSessionManager wires the manager. m may be nil.
func NewSessionManager(cfg SessionConfig, repo users.Repository, hasher auth.PasswordHasher,
	codec auth.TokenCodec, uploader assets.Uploader, logger logging.Logger, m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		users:    repo,
		hasher:   hasher,
		codec:    codec,
		uploader: uploader,
		logger:   logger.With("module", "session_manager"),
		metrics:  m,
	}
}

// Register creates a user. Blank fields are rejected before the store is
// touched; the avatar upload must succeed, the cover image is best-effort.
func (s *SessionManager) Register(ctx context.Context, in RegisterInput) (_ *models.PublicUser, err error) {
	defer func() { s.metrics.ObserveAuth(OpRegister, err) }()

	if err := validate.Struct(in); err != nil {
		return nil, common.NewValidationError(MsgAllFieldsRequired)
	}

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.TrimSpace(in.Email)

	_, err = s.users.FindOne(ctx, users.Lookup{Username: username, Email: email})
	switch {
	case err == nil:
		return nil, common.NewConflictError(MsgUserExists)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.internal(ctx, OpRegister, MsgIdentityStoreFailure, err)
	}

	avatarURL := s.upload(ctx, in.AvatarPath, "avatar")
	if avatarURL == "" {
		return nil, common.NewValidationError(MsgAvatarRequired)
	}
	coverURL := s.upload(ctx, in.CoverImagePath, "coverImage")

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, common.NewValidationError(MsgPasswordTooLong)
		}
		return nil, s.internal(ctx, OpRegister, MsgRegisterFailed, err)
	}

	created, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.NewConflictError(MsgUserExists)
		}
		return nil, s.internal(ctx, OpRegister, MsgRegisterFailed, err)
	}

	user, err := s.users.FindByID(ctx, created.ID, users.ProjectionPublic)
	if err != nil {
		return nil, s.internal(ctx, OpRegister, MsgRegisterFailed, err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user.Public(), nil
}

// Login verifies credentials and starts a new session, replacing any
// previous refresh token.
func (s *SessionManager) Login(ctx context.Context, in LoginInput) (_ *models.PublicUser, _ *models.TokenPair, err error) {
	defer func() { s.metrics.ObserveAuth(OpLogin, err) }()

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.TrimSpace(in.Email)
	if username == "" && email == "" {
		return nil, nil, common.NewValidationError(MsgIdentifierRequired)
	}

	user, err := s.users.FindOne(ctx, users.Lookup{Username: username, Email: email})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.NewNotFoundError(MsgUserNotFound)
		}
		return nil, nil, s.internal(ctx, OpLogin, MsgIdentityStoreFailure, err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, nil, common.NewUnauthorizedError(MsgInvalidCredentials, nil)
	}

	pair, err := s.issueTokenPair(ctx, OpLogin, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, nil, s.internal(ctx, OpLogin, MsgSessionUpdateFailed, err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return user.Public(), pair, nil
}

// Logout clears the stored refresh token. userID comes from an already
// verified access token. Repeated calls succeed.
func (s *SessionManager) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.ObserveAuth(OpLogout, err) }()

	if userID == "" {
		return common.NewUnauthorizedError(MsgUnauthorizedRequest, nil)
	}

	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "logout for unknown user", "user_id", userID)
			return nil
		}
		return s.internal(ctx, OpLogout, MsgSessionUpdateFailed, err)
	}

	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// RefreshAccessToken validates the presented refresh token against the stored
// one and rotates it. The stored token is replaced only if it is still the one
// presented, so of two concurrent refreshes with the same token one fails.
func (s *SessionManager) RefreshAccessToken(ctx context.Context, presented string) (_ *models.TokenPair, err error) {
	defer func() { s.metrics.ObserveAuth(OpRefresh, err) }()

	if presented == "" {
		return nil, common.NewUnauthorizedError(MsgUnauthorizedRequest, nil)
	}

	claims, err := s.codec.Verify(presented, s.cfg.RefreshTokenSecret)
	if err != nil {
		return nil, common.NewUnauthorizedError(MsgInvalidRefreshToken, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID, users.ProjectionFull)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewUnauthorizedError(MsgInvalidRefreshToken, err)
		}
		return nil, s.internal(ctx, OpRefresh, MsgIdentityStoreFailure, err)
	}

	if user.RefreshToken == nil || !sameToken(*user.RefreshToken, presented) {
		return nil, common.NewUnauthorizedError(MsgRefreshTokenUsed, nil)
	}

	pair, err := s.issueTokenPair(ctx, OpRefresh, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		switch {
		case errors.Is(err, common.ErrorConflict):
			return nil, common.NewUnauthorizedError(MsgRefreshTokenUsed, err)
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.NewUnauthorizedError(MsgInvalidRefreshToken, err)
		default:
			return nil, s.internal(ctx, OpRefresh, MsgSessionUpdateFailed, err)
		}
	}

	s.logger.Debug(ctx, "refresh token rotated", "user_id", user.ID)
	return pair, nil
}

// Authenticate resolves an access token to the id of an existing user.
func (s *SessionManager) Authenticate(ctx context.Context, accessToken string) (_ string, err error) {
	defer func() { s.metrics.ObserveAuth(OpAuthenticate, err) }()

	if accessToken == "" {
		return "", common.NewUnauthorizedError(MsgUnauthorizedRequest, nil)
	}

	claims, err := s.codec.Verify(accessToken, s.cfg.AccessTokenSecret)
	if err != nil {
		return "", common.NewUnauthorizedError(MsgInvalidAccessToken, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID, users.ProjectionPublic)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.NewUnauthorizedError(MsgInvalidAccessToken, err)
		}
		return "", s.internal(ctx, OpAuthenticate, MsgIdentityStoreFailure, err)
	}

	return user.ID, nil
}

// --- helpers below ---

func (s *SessionManager) issueTokenPair(ctx context.Context, op, userID string) (*models.TokenPair, error) {
	access, err := s.codec.Sign(userID, s.cfg.AccessTokenSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, s.internal(ctx, op, MsgTokenIssueFailed, err)
	}
	refresh, err := s.codec.Sign(userID, s.cfg.RefreshTokenSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, s.internal(ctx, op, MsgTokenIssueFailed, err)
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// upload returns the stored URL or "" if there was nothing to upload or the
// upload failed.
func (s *SessionManager) upload(ctx context.Context, path, field string) string {
	if path == "" {
		return ""
	}
	res, err := s.uploader.Upload(ctx, path)
	if err != nil {
		s.logger.Warn(ctx, "upload failed", "field", field, "error", err)
		return ""
	}
	if res == nil {
		return ""
	}
	return res.URL
}

func (s *SessionManager) internal(ctx context.Context, op, msg string, cause error) *common.AppError {
	s.logger.Error(ctx, msg, "operation", op, "error", cause)
	return common.NewInternalError(msg, cause)
}

func sameToken(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
