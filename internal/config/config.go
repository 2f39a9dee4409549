package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// DefaultStoreURL is used when REDIS_URL is not set.
const DefaultStoreURL = "redis://localhost:6379"

// Duration is a custom type that can unmarshal from JSON and YAML strings
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

// UnmarshalYAML implements the yaml.BytesUnmarshaler interface
func (d *Duration) UnmarshalYAML(data []byte) error {
	var s string
	if err := yaml.Unmarshal(data, &s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = duration
	return nil
}

// Config is the gateway configuration
type Config struct {
	Server struct {
		Port            string   `json:"port"`
		ReadTimeout     Duration `json:"read_timeout"`
		WriteTimeout    Duration `json:"write_timeout"`
		ShutdownTimeout Duration `json:"shutdown_timeout"`
		MaxBodyBytes    int64    `json:"max_body_bytes"`
	} `json:"server"`

	Store struct {
		URL              string   `json:"url"`
		OperationTimeout Duration `json:"operation_timeout"`

		// Defaulted reports that no store URL was configured anywhere.
		Defaulted bool `json:"-"`
	} `json:"store"`

	Metrics struct {
		CollectionInterval Duration `json:"collection_interval"`
		ProbeTimeout       Duration `json:"probe_timeout"`
	} `json:"metrics"`

	Logging struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logging"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	config := &Config{}
	config.Server.Port = "3000"
	config.Server.ReadTimeout = Duration{10 * time.Second}
	config.Server.WriteTimeout = Duration{10 * time.Second}
	config.Server.ShutdownTimeout = Duration{30 * time.Second}
	config.Server.MaxBodyBytes = 1 << 20
	config.Store.OperationTimeout = Duration{2 * time.Second}
	config.Metrics.CollectionInterval = Duration{15 * time.Second}
	config.Metrics.ProbeTimeout = Duration{time.Second}
	config.Logging.Level = "info"
	config.Logging.Format = "json"
	return config
}

// LoadFromJSON loads configuration from a JSON file on top of the defaults
func LoadFromJSON(path string) (*Config, error) {
	config := New()

	// Open the JSON file
	file, err := os.Open(path)
	if err != nil {
		return nil, err // Fail if file doesn't exist
	}
	defer file.Close()

	// Decode JSON into config struct
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields() // Fail on unknown fields

	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return config, nil
}

// Load builds the gateway configuration. Sources are applied in order:
// defaults, the JSON file named by CONFIG_FILE, a .env file in the working
// directory and finally the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := New()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileConfig, err := LoadFromJSON(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if config.Store.URL == "" {
		config.Store.URL = DefaultStoreURL
		config.Store.Defaulted = true
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		c.Server.Port = v
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok && v != "" {
		c.Store.URL = v
	}
	if v, ok := os.LookupEnv("STORE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
		}
		c.Store.OperationTimeout = Duration{d}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks the configuration for values the gateway cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Metrics.CollectionInterval.Duration <= 0 {
		return fmt.Errorf("metrics.collection_interval must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported logging.format: %s", c.Logging.Format)
	}
	return nil
}

// Addr returns the listen address for the configured port. A bare port
// number such as "3000" binds all interfaces.
func (c *Config) Addr() string {
	if strings.Contains(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

// RedactedStoreURL returns the store URL with any password masked.
func (c *Config) RedactedStoreURL() string {
	u, err := url.Parse(c.Store.URL)
	if err != nil {
		return c.Store.URL
	}
	return u.Redacted()
}
