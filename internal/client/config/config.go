package config

import "os"

// Config holds runtime settings for the Bookly CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - DatabasePath: local SQLite file keeping the saved session.
//   - CoverUploadURL / CoverUploadPreset: unsigned upload endpoint for cover
//     images. When empty, covers go through the server like book files.
//   - LogLevel: diagnostics written to stderr.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string
	CoverUploadURL     string
	CoverUploadPreset  string
	LogLevel           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "bookly.db"
	c.LogLevel = "warn"
}

// Load builds a Config from defaults, environment, the JSON file named by
// -c/-config in args, and finally the flags in args. Later sources take
// precedence over earlier ones.
func Load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, lookupEnv)
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads .env.local and .env into the process environment, then
// builds a Config from os.Args.
func LoadConfig() (*Config, error) {
	loadDotenv(".env.local", ".env")
	return Load(os.Args[1:], os.LookupEnv)
}
