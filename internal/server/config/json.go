package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/idkeeper/internal/flagx"
	"github.com/dmitrijs2005/idkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Interval fields use timex.Duration, which accepts both strings such as
// "10m" and integer nanoseconds. Only non-zero values are copied into Config.
type JsonConfig struct {
	Environment          string         `json:"environment"`
	HTTPAddr             string         `json:"http_addr"`
	GRPCAddr             string         `json:"grpc_addr"`
	AppURL               string         `json:"app_url"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	SessionTokenTTL      timex.Duration `json:"session_token_ttl"`
	MfaCodeTTL           timex.Duration `json:"mfa_code_ttl"`
	ResetTokenTTL        timex.Duration `json:"reset_token_ttl"`
	RequireVerifiedEmail *bool          `json:"require_verified_email"`
	LogDriver            string         `json:"log_driver"`
	LogLevel             string         `json:"log_level"`
	LogFormat            string         `json:"log_format"`
	AllowedOrigins       []string       `json:"allowed_origins"`
	Notifier             string         `json:"notifier"`
	SMTPHost             string         `json:"smtp_host"`
	SMTPPort             int            `json:"smtp_port"`
	SMTPUser             string         `json:"smtp_user"`
	SMTPPassword         string         `json:"smtp_password"`
	SMTPFrom             string         `json:"smtp_from"`
	KafkaBrokers         []string       `json:"kafka_brokers"`
	KafkaTopic           string         `json:"kafka_topic"`
	RedisAddr            string         `json:"redis_addr"`
	RedisStream          string         `json:"redis_stream"`
	SESRegion            string         `json:"ses_region"`
	SESFrom              string         `json:"ses_from"`
	SESAccessKeyID       string         `json:"ses_access_key_id"`
	SESSecretAccessKey   string         `json:"ses_secret_access_key"`
	SESEndpoint          string         `json:"ses_endpoint"`
	AdminEmail           string         `json:"admin_email"`
	AdminPassword        string         `json:"admin_password"`
	AdminName            string         `json:"admin_name"`
}

// parseJson loads configuration values from a JSON file into config.
//
// The file path comes from the -c/-config flag or the CONFIG environment
// variable. If neither is set, nothing is loaded.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.Environment, c.Environment)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.AppURL, c.AppURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)

	if c.SessionTokenTTL.Duration > 0 {
		config.SessionTokenTTL = c.SessionTokenTTL.Duration
	}
	if c.MfaCodeTTL.Duration > 0 {
		config.MfaCodeTTL = c.MfaCodeTTL.Duration
	}
	if c.ResetTokenTTL.Duration > 0 {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}
	if c.RequireVerifiedEmail != nil {
		config.RequireVerifiedEmail = *c.RequireVerifiedEmail
	}

	setString(&config.LogDriver, c.LogDriver)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}

	setString(&config.Notifier, c.Notifier)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisStream, c.RedisStream)
	setString(&config.SESRegion, c.SESRegion)
	setString(&config.SESFrom, c.SESFrom)
	setString(&config.SESAccessKeyID, c.SESAccessKeyID)
	setString(&config.SESSecretAccessKey, c.SESSecretAccessKey)
	setString(&config.SESEndpoint, c.SESEndpoint)

	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.AdminName, c.AdminName)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
