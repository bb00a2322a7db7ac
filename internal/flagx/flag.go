// Package flagx contains small helpers for sharing os.Args between several
// independent flag sets.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnv names the environment variable consulted when no -c/-config flag
// is given.
const ConfigEnv = "OFFSYNC_CONFIG"

// FilterArgs keeps only the allowed flags (and their values) from args, in
// their original order. Names are compared without leading dashes, so
// "-config" also admits "--config", matching the flag package.
//
// Both "-c value" and "-c=value" forms are recognised. A separate value is
// taken only when the next token does not itself start with a dash.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, found := strings.Cut(arg, "="); found {
			if _, ok := allowed[flagName(name)]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[flagName(arg)]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

func flagName(s string) string {
	return strings.TrimLeft(s, "-")
}

// ConfigFile returns the JSON config path from -c/-config in args, falling
// back to the envVar environment variable. Empty means no file.
func ConfigFile(args []string, envVar string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	if config == "" && envVar != "" {
		config = os.Getenv(envVar)
	}
	return config
}

// JsonConfigFlags is ConfigFile over the process arguments and ConfigEnv.
func JsonConfigFlags() string {
	return ConfigFile(os.Args[1:], ConfigEnv)
}
