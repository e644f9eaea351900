package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir string `yaml:"data_dir"`

	// Owner is the account or organization whose repositories are scanned.
	// Empty means the authenticated user.
	Owner string `yaml:"owner"`

	IntervalMinutes int  `yaml:"interval_minutes"`
	WindowMinutes   int  `yaml:"window_minutes"`
	PerRepoLimit    int  `yaml:"per_repo_limit"`
	FirstLoadCount  int  `yaml:"first_load_count"`
	FetchTimeoutSec int  `yaml:"fetch_timeout_seconds"`
	Verbose         bool `yaml:"verbose"`
}

func Default() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return &Config{
		DataDir:         getEnv("RUNFEED_DATA_DIR", filepath.Join(homeDir, ".runfeed")),
		IntervalMinutes: 30,
		WindowMinutes:   30,
		PerRepoLimit:    100,
		FirstLoadCount:  100,
		FetchTimeoutSec: 30,
	}, nil
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (if any), then RUNFEED_* environment overrides. A missing file is not
// an error; a present but unparseable file is.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("RUNFEED_OWNER"); v != "" {
		c.Owner = v
	}
	if v := os.Getenv("RUNFEED_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IntervalMinutes = n
		}
	}
	if v := os.Getenv("RUNFEED_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Verbose = b
		}
	}

	return c, c.Validate()
}

func (c *Config) Validate() error {
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval must be a positive number of minutes, got %d", c.IntervalMinutes)
	}
	if c.WindowMinutes <= 0 {
		return fmt.Errorf("window must be a positive number of minutes, got %d", c.WindowMinutes)
	}
	if c.PerRepoLimit <= 0 || c.FirstLoadCount <= 0 {
		return fmt.Errorf("per_repo_limit and first_load_count must be positive")
	}
	return nil
}

func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.json")
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
