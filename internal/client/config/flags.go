package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the idkeeper server
//	-t int      request timeout (seconds)
//	-i int      online check interval (seconds)
//
// os.Args is filtered through flagx.FilterArgs first so flags meant for
// other loaders do not cause parse errors.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		}
	})
	return nil
}
