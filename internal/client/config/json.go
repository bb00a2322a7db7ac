package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/offsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	OutboxDSN          string         `json:"outbox_dsn"`
	DeviceID           string         `json:"device_id"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// applyJSON overlays cfg with the non-empty values found in path.
func applyJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.OutboxDSN != "" {
		cfg.OutboxDSN = jc.OutboxDSN
	}
	if jc.DeviceID != "" {
		cfg.DeviceID = jc.DeviceID
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
