package config

import (
	"os"

	"github.com/spf13/pflag"
)

// EnvConfigFile names the environment variable holding the JSON config path.
const EnvConfigFile = "OFFSYNC_CLIENT_CONFIG"

// Flags binds syncctl's global flags to a FlagSet.
type Flags struct {
	values     Config
	configFile string
}

// BindFlags registers the global flags on fs.
//
//	-c, --config   path to a JSON config file
//	-a, --server   address:port of the sync server
//	-o, --outbox   local outbox database path
//	-d, --device   external device id
//	-t, --timeout  per-request timeout, e.g. 5s
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	f.values.LoadDefaults()

	fs.StringVarP(&f.configFile, "config", "c", "", "path to JSON config file")
	fs.StringVarP(&f.values.ServerEndpointAddr, "server", "a", f.values.ServerEndpointAddr, "address and port of the sync server")
	fs.StringVarP(&f.values.OutboxDSN, "outbox", "o", f.values.OutboxDSN, "local outbox database path")
	fs.StringVarP(&f.values.DeviceID, "device", "d", f.values.DeviceID, "external device id")
	fs.DurationVarP(&f.values.RequestTimeout, "timeout", "t", f.values.RequestTimeout, "per-request timeout")
	return f
}

// Load resolves the configuration: defaults, then the JSON file, then any
// flag set explicitly on the command line.
func (f *Flags) Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path := f.configFile
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := applyJSON(cfg, path); err != nil {
			return nil, err
		}
	}

	if fs.Changed("server") {
		cfg.ServerEndpointAddr = f.values.ServerEndpointAddr
	}
	if fs.Changed("outbox") {
		cfg.OutboxDSN = f.values.OutboxDSN
	}
	if fs.Changed("device") {
		cfg.DeviceID = f.values.DeviceID
	}
	if fs.Changed("timeout") {
		cfg.RequestTimeout = f.values.RequestTimeout
	}
	return cfg, nil
}
