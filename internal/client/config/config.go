package config

import "time"

// Config holds runtime settings for syncctl.
//
// Fields:
//   - ServerEndpointAddr: host:port of the sync server gRPC endpoint.
//   - OutboxDSN: path of the local SQLite outbox database.
//   - DeviceID: external id this client registers under.
//   - RequestTimeout: per-RPC deadline.
type Config struct {
	ServerEndpointAddr string
	OutboxDSN          string
	DeviceID           string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OutboxDSN = "offsync/outbox.db"
	c.DeviceID = ""
	c.RequestTimeout = 10 * time.Second
}
