// Package server initializes and runs the vidtube auth server.
// It opens the configured identity store, runs its migrations, wires the
// session manager and serves HTTP until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/filex"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server/assets"
	"github.com/dmitrijs2005/vidtube/internal/server/auth"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/httpapi"
	"github.com/dmitrijs2005/vidtube/internal/server/metrics"
	"github.com/dmitrijs2005/vidtube/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
	"github.com/dmitrijs2005/vidtube/internal/server/telemetry"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     repomanager.RepositoryManager
	sessions  *services.SessionManager
	metrics   *metrics.Metrics
	uploadDir string
}

// uploaderFactory is a seam for tests that must not build an S3 client.
var uploaderFactory = func(ctx context.Context, c *config.Config, l logging.Logger) (assets.Uploader, error) {
	return assets.NewS3Uploader(ctx, assets.S3Config{
		Region:        c.S3Region,
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		BaseEndpoint:  c.S3BaseEndpoint,
		Bucket:        c.S3Bucket,
		PublicBaseURL: c.S3PublicBaseURL,
	}, l)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	uploadDir, err := filex.EnsureSubdDir(c.UploadTempDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir error: %w", err)
	}

	repos, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	uploader, err := uploaderFactory(ctx, c, logger)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("uploader init error: %w", err)
	}

	m := metrics.New()
	sessions := services.NewSessionManager(
		services.SessionConfigFrom(c),
		repos.Users(),
		auth.NewBcryptHasher(c.BcryptCost),
		auth.NewJWTCodec(),
		uploader,
		logger,
		m,
	)

	return &App{
		config:    c,
		logger:    logger,
		repos:     repos,
		sessions:  sessions,
		metrics:   m,
		uploadDir: uploadDir,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(
		httpapi.OptionsFrom(app.config, app.uploadDir),
		app.logger,
		app.sessions,
		app.repos.Ping,
		app.metrics,
	)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	shutdownTracing, err := telemetry.Init(ctx, "vidtube", app.config.OTLPEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownTracing(closeCtx); err != nil {
		app.logger.Warn(closeCtx, "tracer shutdown", "error", err)
	}
	if err := app.repos.Close(closeCtx); err != nil {
		app.logger.Error(closeCtx, "storage close", "error", err)
	}

	app.logger.Info(closeCtx, "App stopped")
}
