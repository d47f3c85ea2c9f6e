package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vidtube/internal/flagx"
)

// parseFlags overlays selected Config fields from command-line flags.
//
//	-a string        HTTP bind address (e.g. ":8000")
//	-storage string  identity store backend: mongodb, postgres or memory
//	-d string        PostgreSQL DSN
//	-m string        MongoDB URI
//	-mdb string      MongoDB database name
//	-s string        access token secret
//	-rs string       refresh token secret
//	-t int           access token validity, minutes
//	-r int           refresh token validity, minutes
//	-u string        S3 root user
//	-p string        S3 root password
//	-b string        S3 bucket
//	-g string        S3 region
//	-e string        S3 base endpoint
//	-l string        log level
//
// os.Args is filtered with flagx.FilterArgs first so -c/-config and
// -env-file do not clash with this set. A parse error panics.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-storage", "-d", "-m", "-mdb", "-s", "-rs", "-t", "-r", "-u", "-p", "-b", "-g", "-e", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "identity store backend (mongodb, postgres, memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.MongoDatabase, "mdb", config.MongoDatabase, "MongoDB database")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// minutes only apply when given, so sub-minute values from env or JSON survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
}
