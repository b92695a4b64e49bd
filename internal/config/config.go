package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CW"

type Config struct {
	APIURL         string        `envconfig:"API_URL" default:"http://localhost:8080/api"`
	WSURL          string        `envconfig:"WS_URL" default:"ws://localhost:8080/api/ws"`
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:":6366"`
	ReconnectDelay time.Duration `envconfig:"RECONNECT_DELAY" default:"5s"`
	// AwaitTimeout bounds the wait for a terminal push event. Zero waits forever.
	AwaitTimeout   time.Duration `envconfig:"AWAIT_TIMEOUT" default:"0s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ConfigLimit    int           `envconfig:"CONFIG_LIMIT" default:"50"`
	FetchSource    string        `envconfig:"FETCH_SOURCE" default:"all"`
	AutoFetchCron  string        `envconfig:"AUTO_FETCH_CRON"`
	AutoTestCron   string        `envconfig:"AUTO_TEST_CRON"`
	Debug          bool          `envconfig:"DEBUG" default:"false"`
}

// Load reads an optional .env file, then the CW_* environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := checkURL(c.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("CW_API_URL: %w", err)
	}
	if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("CW_WS_URL: %w", err)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("CW_RECONNECT_DELAY must be positive")
	}
	if c.AwaitTimeout < 0 {
		return fmt.Errorf("CW_AWAIT_TIMEOUT must not be negative")
	}
	if c.ConfigLimit <= 0 {
		return fmt.Errorf("CW_CONFIG_LIMIT must be positive")
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s, got %q", strings.Join(schemes, "/"), u.Scheme)
}
