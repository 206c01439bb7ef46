// Package flagx contains helpers for sharing os.Args between several
// independent flag sets (JSON config lookup, server flags, client flags).
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnvName is consulted when no -c/-config flag is given.
const ConfigEnvName = "CONFIG"

// flagName strips one or two leading dashes, so "-c", "--c" and "c" compare equal.
func flagName(arg string) string {
	if strings.HasPrefix(arg, "--") {
		return arg[2:]
	}
	return strings.TrimPrefix(arg, "-")
}

// FilterArgs returns the subset of args made of allowed flags and their values.
//
// Supported forms:
//
//	-c conf.json      --c conf.json
//	-c=conf.json      --config=conf.json
//
// allowedFlags may be given with or without dashes. A following token is taken
// as the value unless it starts with "-". The result is never nil.
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

		if _, ok := allowed[flagName(arg)]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JsonConfigFlags returns the JSON config path given via -c/-config, falling
// back to the CONFIG environment variable. Empty means no JSON file.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"c", "config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	if config == "" {
		config = os.Getenv(ConfigEnvName)
	}

	return config
}
