package config

import (
	"context"
	"errors"
	"io/fs"

	"github.com/dmitrijs2005/vidtube/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const defaultEnvFile = ".env"

// loadDotEnv seeds the process environment from a dotenv file. The file
// named by -env-file must exist; the default .env is optional. Variables
// already present in the environment win over the file.
func loadDotEnv() error {
	path := flagx.EnvFileFlags()
	if path == "" {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return godotenv.Load(path)
}

func osLookuper() envconfig.Lookuper {
	return envconfig.OsLookuper()
}

// parseEnv overlays variables found through l onto config. Unset variables
// keep the current value.
func parseEnv(ctx context.Context, config *Config, l envconfig.Lookuper) error {
	if err := loadDotEnv(); err != nil {
		return err
	}
	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   config,
		Lookuper: l,
	})
}
