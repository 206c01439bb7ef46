package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/flagx"
	"github.com/dmitrijs2005/idkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals
// may be strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
}

// parseJson overlays Config with values from the file named by -c/-config
// or the CONFIG environment variable. Zero values are ignored.
func parseJson(cfg *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	return nil
}
