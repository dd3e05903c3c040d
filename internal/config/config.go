package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultAPIURL = "https://admin.mcscglobal.org/api"

// Duration reads either a Go duration string ("15s") or whole seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch value := raw.(type) {
	case float64:
		d.Duration = time.Duration(value) * time.Second
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

type Config struct {
	APIURL         string   `json:"api_url"`
	DBPath         string   `json:"db_path"`
	WebEnabled     bool     `json:"web_enabled"`
	WebPort        int      `json:"web_port"`
	RequestTimeout Duration `json:"request_timeout"`
	SyncInterval   Duration `json:"sync_interval"`
	LogPath        string   `json:"log_path"`
}

func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		WebPort:        8080,
		RequestTimeout: Duration{15 * time.Second},
		SyncInterval:   Duration{5 * time.Minute},
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazytodo", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// ReadFile returns the defaults overlaid with the config file, if any. The
// environment is not consulted, so the result is safe to write back.
func ReadFile(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return Config{}, err
	}

	config.APIURL = strings.TrimRight(config.APIURL, "/")
	return config, nil
}

// Load reads the config file, if any, and then applies LAZYTODO_*
// environment overrides.
func Load(path string) (Config, error) {
	config, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	config.ApplyEnv()
	return config, nil
}

func (c *Config) ApplyEnv() {
	c.APIURL = strings.TrimRight(getEnv("LAZYTODO_API_URL", c.APIURL), "/")
	c.DBPath = getEnv("LAZYTODO_DB_PATH", c.DBPath)
	c.WebPort = getEnvAsInt("LAZYTODO_WEB_PORT", c.WebPort)
	c.RequestTimeout.Duration = getEnvAsDuration("LAZYTODO_REQUEST_TIMEOUT", c.RequestTimeout.Duration)
	c.SyncInterval.Duration = getEnvAsDuration("LAZYTODO_SYNC_INTERVAL", c.SyncInterval.Duration)
	c.LogPath = getEnv("LAZYTODO_LOG_PATH", c.LogPath)
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
