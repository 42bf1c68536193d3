package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bookly/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent
// fields leave the current value untouched.
type JsonConfig struct {
	ServerEndpointAddr *string `json:"server_endpoint_addr"`
	DatabasePath       *string `json:"database_path"`
	CoverUploadURL     *string `json:"cover_upload_url"`
	CoverUploadPreset  *string `json:"cover_upload_preset"`
	LogLevel           *string `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c or -config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	set(&cfg.DatabasePath, jc.DatabasePath)
	set(&cfg.CoverUploadURL, jc.CoverUploadURL)
	set(&cfg.CoverUploadPreset, jc.CoverUploadPreset)
	set(&cfg.LogLevel, jc.LogLevel)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
