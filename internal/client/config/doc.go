// Package config loads runtime configuration for syncctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file given by -c/--config or OFFSYNC_CLIENT_CONFIG.
//  3. Flags set explicitly on the command line.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "outbox_dsn": "offsync/outbox.db",
//	  "device_id": "pos-17",
//	  "request_timeout": "10s"
//	}
package config
