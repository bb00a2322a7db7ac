package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/offsync/internal/flagx"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "90s" strings and integer nanoseconds are accepted. Keys absent from
// the file leave the current value untouched.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	DefaultBatchSize            int            `json:"default_batch_size"`
	DefaultMaxRetries           int            `json:"default_max_retries"`
	CacheTTL                    timex.Duration `json:"cache_ttl"`
	CacheSweepInterval          timex.Duration `json:"cache_sweep_interval"`
	DefaultSyncFrequency        timex.Duration `json:"default_sync_frequency"`
	DefaultStorageLimitBytes    int64          `json:"default_storage_limit_bytes"`
	LogFile                     string         `json:"log_file"`
	LogLevel                    string         `json:"log_level"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	SyncedTables                []string       `json:"synced_tables"`
}

// parseJson overlays values from the JSON file named by -c/-config (or the
// OFFSYNC_CONFIG environment variable). It panics when the file cannot be
// read or decoded.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	if c.DefaultBatchSize > 0 {
		config.DefaultBatchSize = c.DefaultBatchSize
	}
	if c.DefaultMaxRetries > 0 {
		config.DefaultMaxRetries = c.DefaultMaxRetries
	}
	setDuration(&config.CacheTTL, c.CacheTTL)
	setDuration(&config.CacheSweepInterval, c.CacheSweepInterval)
	setDuration(&config.DefaultSyncFrequency, c.DefaultSyncFrequency)
	if c.DefaultStorageLimitBytes > 0 {
		config.DefaultStorageLimitBytes = c.DefaultStorageLimitBytes
	}
	setString(&config.LogFile, c.LogFile)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if len(c.SyncedTables) > 0 {
		config.SyncedTables = c.SyncedTables
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
