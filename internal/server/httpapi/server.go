// Package httpapi exposes the session manager over HTTP: the four user auth
// routes plus health, readiness and metrics endpoints.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
)

// SessionService is the part of services.SessionManager the handlers use.
type SessionService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*models.PublicUser, *models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccessToken(ctx context.Context, presented string) (*models.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// ReadinessFunc reports whether dependencies are reachable.
type ReadinessFunc func(ctx context.Context) error

type HTTPServer struct {
	opts     Options
	sessions SessionService
	ready    ReadinessFunc
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// NewHTTPServer builds the server. ready and m may be nil.
func NewHTTPServer(opts Options, l logging.Logger, sessions SessionService, ready ReadinessFunc, m *metrics.Metrics) *HTTPServer {
	return &HTTPServer{
		opts:     opts,
		sessions: sessions,
		ready:    ready,
		metrics:  m,
		logger:   l.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
