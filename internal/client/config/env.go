package config

import (
	"os"

	"github.com/joho/godotenv"
)

func loadDotenv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

func parseEnv(c *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("BOOKLY_SERVER_ADDR", &c.ServerEndpointAddr)
	str("BOOKLY_CLIENT_DB", &c.DatabasePath)
	str("BOOKLY_COVER_UPLOAD_URL", &c.CoverUploadURL)
	str("BOOKLY_COVER_UPLOAD_PRESET", &c.CoverUploadPreset)
	str("BOOKLY_CLIENT_LOG_LEVEL", &c.LogLevel)
}
