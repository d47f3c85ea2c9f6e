package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/server/config"
)

// Options configures the HTTP surface.
type Options struct {
	Address            string
	ServiceName        string
	AllowedOrigins     []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	// UploadDir must exist; multipart files are spooled into it.
	UploadDir     string
	MaxUploadSize int64
	Cookies       CookieConfig
}

func OptionsFrom(cfg *config.Config, uploadDir string) Options {
	return Options{
		Address:            cfg.HTTPAddr,
		ServiceName:        "vidtube",
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     30 * time.Second,
		UploadDir:          uploadDir,
		MaxUploadSize:      cfg.MaxUploadSize,
		Cookies: CookieConfig{
			Secure:     cfg.CookieSecure,
			SameSite:   ParseSameSite(cfg.CookieSameSite),
			Domain:     cfg.CookieDomain,
			AccessTTL:  cfg.AccessTokenValidityDuration,
			RefreshTTL: cfg.RefreshTokenValidityDuration,
		},
	}
}

// ParseSameSite maps lax, strict and none; anything else is Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
