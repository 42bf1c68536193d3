package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotenv reads the files that exist; variables already set in the
// environment keep their values.
func loadDotenv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// parseEnv overlays Config with BOOKLY_* environment variables.
func parseEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("BOOKLY_GRPC_ADDR", &c.EndpointAddrGRPC)
	str("BOOKLY_DATABASE_DSN", &c.DatabaseDSN)
	str("BOOKLY_SECRET_KEY", &c.SecretKey)
	str("BOOKLY_GOOGLE_CLIENT_ID", &c.GoogleClientID)
	str("BOOKLY_GOOGLE_CERTS_URL", &c.GoogleCertsURL)
	str("BOOKLY_S3_ACCESS_KEY", &c.S3AccessKey)
	str("BOOKLY_S3_SECRET_KEY", &c.S3SecretKey)
	str("BOOKLY_S3_BUCKET", &c.S3Bucket)
	str("BOOKLY_S3_REGION", &c.S3Region)
	str("BOOKLY_S3_ENDPOINT", &c.S3BaseEndpoint)
	str("BOOKLY_S3_PUBLIC_URL", &c.S3PublicBaseURL)
	str("BOOKLY_LOG_LEVEL", &c.LogLevel)

	if err := dur("BOOKLY_ACCESS_TOKEN_TTL", &c.AccessTokenValidityDuration); err != nil {
		return err
	}
	if err := dur("BOOKLY_REFRESH_TOKEN_TTL", &c.RefreshTokenValidityDuration); err != nil {
		return err
	}

	if v, ok := lookup("BOOKLY_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOOKLY_S3_PATH_STYLE: %w", err)
		}
		c.S3PathStyle = b
	}
	if v, ok := lookup("BOOKLY_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BOOKLY_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup("BOOKLY_RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOOKLY_RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	return nil
}
