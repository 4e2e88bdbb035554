// Package config loads the parkgate configuration file. YAML, TOML and the
// legacy config.json layout are supported.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"parkgate/internal/domain"
)

// Config represents the complete parkgate configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Billing BillingConfig `yaml:"billing" toml:"billing"`
	Events  EventsConfig  `yaml:"events" toml:"events"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	SSO     SSOConfig     `yaml:"sso" toml:"sso"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr     string        `yaml:"http_addr" toml:"http_addr"`
	ReadTimeout  time.Duration `yaml:"-" toml:"-"`
	WriteTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadTimeoutRaw  string `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeoutRaw string `yaml:"write_timeout" toml:"write_timeout"`
}

// Storage drivers
const (
	DriverJSONFile = "jsonfile"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects and locates the record store
type StorageConfig struct {
	Driver       string `yaml:"driver" toml:"driver"`
	VehiclesPath string `yaml:"vehicles_path" toml:"vehicles_path"`
	UsersPath    string `yaml:"users_path" toml:"users_path"`
	SQLitePath   string `yaml:"sqlite_path" toml:"sqlite_path"`
	PostgresURL  string `yaml:"postgres_url" toml:"postgres_url"`
}

// BillingConfig holds the tariff. Pointers distinguish a missing key from zero.
type BillingConfig struct {
	FreeMinutes  *int     `yaml:"free_minutes" toml:"free_minutes"`
	StageMinutes *int     `yaml:"stage_minutes" toml:"stage_minutes"`
	StagePrice   *float64 `yaml:"stage_price" toml:"stage_price"`
	DailyCap     *float64 `yaml:"daily_cap" toml:"daily_cap"`
}

// EventsConfig holds the event bus connection
type EventsConfig struct {
	NATSURL string `yaml:"nats_url" toml:"nats_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// SSOConfig holds OpenID Connect login configuration
type SSOConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	Issuer       string `yaml:"issuer" toml:"issuer"`
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url" toml:"redirect_url"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := decodeLegacyJSON([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverJSONFile
	}
	if c.Storage.VehiclesPath == "" {
		c.Storage.VehiclesPath = "vehicles.json"
	}
	if c.Storage.UsersPath == "" {
		c.Storage.UsersPath = "users.json"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "parkgate.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks required fields. A missing or invalid tariff is fatal.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Storage.Driver {
	case DriverJSONFile, DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of jsonfile, sqlite, postgres, memory", c.Storage.Driver)
	}

	if _, err := c.Billing.Tariff(); err != nil {
		return err
	}

	if c.SSO.Enabled {
		if c.SSO.Issuer == "" || c.SSO.ClientID == "" || c.SSO.RedirectURL == "" {
			return fmt.Errorf("sso.issuer, sso.client_id and sso.redirect_url are required when sso is enabled")
		}
	}

	return nil
}

// Tariff converts the billing section into the engine's tariff.
func (b BillingConfig) Tariff() (*domain.BillingConfig, error) {
	missing := []string{}
	if b.FreeMinutes == nil {
		missing = append(missing, "free_minutes")
	}
	if b.StageMinutes == nil {
		missing = append(missing, "stage_minutes")
	}
	if b.StagePrice == nil {
		missing = append(missing, "stage_price")
	}
	if b.DailyCap == nil {
		missing = append(missing, "daily_cap")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: billing.%s is required", domain.ErrConfig, strings.Join(missing, ", billing."))
	}

	t := &domain.BillingConfig{
		FreeMinutes:  *b.FreeMinutes,
		StageMinutes: *b.StageMinutes,
		StagePrice:   *b.StagePrice,
		DailyCap:     *b.DailyCap,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ReadTimeoutRaw != "" {
		cfg.Server.ReadTimeout, err = time.ParseDuration(cfg.Server.ReadTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing read_timeout %q: %w", cfg.Server.ReadTimeoutRaw, err)
		}
	}

	if cfg.Server.WriteTimeoutRaw != "" {
		cfg.Server.WriteTimeout, err = time.ParseDuration(cfg.Server.WriteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing write_timeout %q: %w", cfg.Server.WriteTimeoutRaw, err)
		}
	}

	return nil
}

// legacyConfig is the flat config.json written by earlier deployments.
type legacyConfig struct {
	FreeTime      *int     `json:"freetime"`
	FeeStageTime  *int     `json:"fee_stage_time"`
	FeeStagePrice *float64 `json:"fee_stage_price"`
	FeeDayTop     *float64 `json:"fee_day_top"`
	IP            string   `json:"ip"`
	Port          int      `json:"port"`
}

func decodeLegacyJSON(data []byte, cfg *Config) error {
	var legacy legacyConfig
	if err := json.Unmarshal(data, &legacy); err != nil {
		return err
	}
	cfg.Billing = BillingConfig{
		FreeMinutes:  legacy.FreeTime,
		StageMinutes: legacy.FeeStageTime,
		StagePrice:   legacy.FeeStagePrice,
		DailyCap:     legacy.FeeDayTop,
	}
	if legacy.Port != 0 {
		cfg.Server.HTTPAddr = net.JoinHostPort(legacy.IP, strconv.Itoa(legacy.Port))
	}
	return nil
}
