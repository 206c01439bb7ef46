package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// lookupFunc mirrors os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// loadDotEnv reads .env from the working directory into the process
// environment when present. Existing variables are not overwritten.
func loadDotEnv() lookupFunc {
	_ = godotenv.Load()
	return os.LookupEnv
}

// parseEnv overlays config with environment variables. The first name in
// each list wins; the others are accepted aliases.
func parseEnv(config *Config, lookup lookupFunc) error {
	get := func(names ...string) (string, bool) {
		for _, n := range names {
			if v, ok := lookup(n); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
	str := func(dst *string, names ...string) {
		if v, ok := get(names...); ok {
			*dst = v
		}
	}

	str(&config.Environment, "APP_ENV", "NODE_ENV")
	if port, ok := get("PORT"); ok {
		config.HTTPAddr = ":" + port
	}
	str(&config.HTTPAddr, "HTTP_ADDR")
	str(&config.GRPCAddr, "GRPC_ADDR")
	str(&config.AppURL, "APP_URL")
	str(&config.DatabaseDSN, "DATABASE_DSN", "MONGODB_URI")
	str(&config.SecretKey, "JWT_ACCESS_TOKEN_SECRET", "JWT_SECRET")

	for _, d := range []struct {
		dst  *time.Duration
		name string
	}{
		{&config.SessionTokenTTL, "SESSION_TOKEN_TTL"},
		{&config.MfaCodeTTL, "MFA_CODE_TTL"},
		{&config.ResetTokenTTL, "RESET_TOKEN_TTL"},
	} {
		if v, ok := get(d.name); ok {
			dur, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.name, err)
			}
			*d.dst = dur
		}
	}

	if v, ok := get("REQUIRE_VERIFIED_EMAIL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REQUIRE_VERIFIED_EMAIL: %w", err)
		}
		config.RequireVerifiedEmail = b
	}

	str(&config.LogDriver, "LOG_DRIVER")
	str(&config.LogLevel, "LOG_LEVEL")
	str(&config.LogFormat, "LOG_FORMAT")
	if v, ok := get("CORS_ORIGINS"); ok {
		config.AllowedOrigins = splitList(v)
	}

	str(&config.Notifier, "NOTIFIER")
	str(&config.SMTPHost, "SMTP_HOST")
	if v, ok := get("SMTP_PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		config.SMTPPort = p
	}
	str(&config.SMTPUser, "SMTP_USER")
	str(&config.SMTPPassword, "SMTP_PASSWORD")
	str(&config.SMTPFrom, "SMTP_FROM")
	if v, ok := get("KAFKA_BROKERS"); ok {
		config.KafkaBrokers = splitList(v)
	}
	str(&config.KafkaTopic, "KAFKA_TOPIC")
	str(&config.RedisAddr, "REDIS_ADDR")
	str(&config.RedisStream, "REDIS_STREAM")
	str(&config.SESRegion, "SES_REGION", "AWS_REGION")
	str(&config.SESFrom, "SES_FROM")
	str(&config.SESAccessKeyID, "SES_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	str(&config.SESSecretAccessKey, "SES_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	str(&config.SESEndpoint, "SES_ENDPOINT")

	str(&config.AdminEmail, "ADMIN_EMAIL")
	str(&config.AdminPassword, "ADMIN_PASSWORD")
	str(&config.AdminName, "ADMIN_NAME")

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
