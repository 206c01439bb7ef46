package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   account store DSN (postgres://, mongodb://, memory://)
//	-s string   session token HMAC secret
//	-e string   environment (development, production, test)
//	-u string   public application URL
//	-t int      session token validity, minutes
//	-m int      MFA code validity, minutes
//	-r int      password reset token validity, minutes
//	-l string   log level
//	-n string   notifier (log, smtp, kafka, redis, ses)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the JSON config flags.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-e", "-u", "-t", "-m", "-r", "-l", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run HTTP server")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment")
	fs.StringVar(&config.AppURL, "u", config.AppURL, "public application URL")

	sessionTTL := fs.Int("t", int(config.SessionTokenTTL.Minutes()), "session token validity (in minutes)")
	mfaTTL := fs.Int("m", int(config.MfaCodeTTL.Minutes()), "mfa code validity (in minutes)")
	resetTTL := fs.Int("r", int(config.ResetTokenTTL.Minutes()), "reset token validity (in minutes)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.Notifier, "n", config.Notifier, "notifier")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only explicitly given durations are applied, so sub-minute values
	// from JSON or env survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.SessionTokenTTL = time.Duration(*sessionTTL) * time.Minute
		case "m":
			config.MfaCodeTTL = time.Duration(*mfaTTL) * time.Minute
		case "r":
			config.ResetTokenTTL = time.Duration(*resetTTL) * time.Minute
		}
	})
	return nil
}
