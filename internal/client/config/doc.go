// Package config loads runtime configuration for the Bookly CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. .env.local / .env files and BOOKLY_* environment variables.
//  3. Optional JSON file selected via -c or -config.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-f string   local SQLite file
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "bookly.db",
//	  "cover_upload_url": "https://api.example.com/v1_1/demo/image/upload",
//	  "cover_upload_preset": "covers",
//	  "log_level": "warn"
//	}
package config
