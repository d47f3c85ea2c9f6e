package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler builds the router wrapped in OpenTelemetry instrumentation.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}

	allowed := s.opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, common.NewNotFoundError("Route not found"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", s.readyz)

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1/users", func(r chi.Router) {
		if s.opts.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimitPerMinute, time.Minute))
		}

		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/refresh-token", s.refreshToken)
		r.With(s.requireAccessToken).Post("/logout", s.logout)
	})

	name := s.opts.ServiceName
	if name == "" {
		name = "vidtube"
	}
	return otelhttp.NewHandler(r, name)
}

func (s *HTTPServer) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "not ready", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
