package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays PREFIX_* variables (for example TORNET_INTERVAL) onto
// cfg. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, prefix string, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(prefix + "_" + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("INTERVAL"); ok {
		cfg.Interval = v
	}
	if v, ok := get("COUNT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s_COUNT: %w", prefix, err)
		}
		cfg.Count = &n
	}
	if v, ok := get("COUNTRY"); ok {
		cfg.Country = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("METRICS_LISTEN"); ok {
		cfg.MetricsListen = v
	}
	if v, ok := get("FIREWALL_BACKEND"); ok {
		if cfg.Firewall == nil {
			cfg.Firewall = &FirewallConfig{}
		}
		cfg.Firewall.Backend = v
	}
	return nil
}
