package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/vidtube/internal/flagx"
	"github.com/dmitrijs2005/vidtube/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// "15m"-style strings or integer nanoseconds. Only keys present in the file
// override the current Config.
type JsonConfig struct {
	HTTPAddr                     *string         `json:"http_addr"`
	StorageBackend               *string         `json:"storage_backend"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	MongoURI                     *string         `json:"mongodb_uri"`
	MongoDatabase                *string         `json:"mongodb_database"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	CookieSameSite               *string         `json:"cookie_samesite"`
	CookieDomain                 *string         `json:"cookie_domain"`
	CORSAllowedOrigins           []string        `json:"cors_allowed_origins"`
	RateLimitPerMinute           *int            `json:"rate_limit_per_minute"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	UploadTempDir                *string         `json:"upload_temp_dir"`
	MaxUploadSize                *int64          `json:"max_upload_size"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              *string         `json:"s3_public_base_url"`
	OTLPEndpoint                 *string         `json:"otlp_endpoint"`
	LogLevel                     *string         `json:"log_level"`
	LogFormat                    *string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config into config. Without the flag
// nothing happens. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.StorageBackend, c.StorageBackend)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.MongoURI, c.MongoURI)
	set(&config.MongoDatabase, c.MongoDatabase)
	set(&config.AccessTokenSecret, c.AccessTokenSecret)
	set(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	set(&config.CookieSecure, c.CookieSecure)
	set(&config.CookieSameSite, c.CookieSameSite)
	set(&config.CookieDomain, c.CookieDomain)
	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	set(&config.RateLimitPerMinute, c.RateLimitPerMinute)
	set(&config.BcryptCost, c.BcryptCost)
	set(&config.UploadTempDir, c.UploadTempDir)
	set(&config.MaxUploadSize, c.MaxUploadSize)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	set(&config.OTLPEndpoint, c.OTLPEndpoint)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
