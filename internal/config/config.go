package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, loaded once at startup and
// passed to each component at construction.
type Config struct {
	Airtable AirtableConfig `yaml:"airtable"`
	Sheet    SheetConfig    `yaml:"sheet"`
	WP       WPConfig       `yaml:"wordpress"`
	Callback CallbackConfig `yaml:"callback"`
	Cache    CacheConfig    `yaml:"cache"`
	Sync     SyncConfig     `yaml:"sync"`
	LogLevel string         `yaml:"log_level"`
}

type AirtableConfig struct {
	Token          string        `yaml:"token"`
	BaseID         string        `yaml:"base_id"`
	TableID        string        `yaml:"table_id"`
	View           string        `yaml:"view"`
	Fields         []string      `yaml:"fields"`
	TimestampField string        `yaml:"timestamp_field"`
	TitleField     string        `yaml:"title_field"`
	PageSize       int           `yaml:"page_size"`
	InterPageDelay time.Duration `yaml:"inter_page_delay"`
	Retry          RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SheetConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Name            string `yaml:"name"`
	ResultsLogSheet string `yaml:"results_log_sheet"`
}

type WPConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	ImportID string        `yaml:"import_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type CallbackConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timezone string        `yaml:"timezone"`
}

// Load reads the YAML config at path, expanding ${VAR} references from the
// environment after loading a .env file if one exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Airtable.PageSize == 0 {
		c.Airtable.PageSize = 100
	}
	if c.Airtable.InterPageDelay == 0 {
		c.Airtable.InterPageDelay = 200 * time.Millisecond
	}
	if c.Airtable.Retry.MaxRetries == 0 {
		c.Airtable.Retry.MaxRetries = 3
	}
	if c.Airtable.Retry.BaseDelay == 0 {
		c.Airtable.Retry.BaseDelay = 500 * time.Millisecond
	}
	if c.Airtable.Retry.MaxDelay == 0 {
		c.Airtable.Retry.MaxDelay = 30 * time.Second
	}
	if c.Airtable.Retry.Timeout == 0 {
		c.Airtable.Retry.Timeout = 30 * time.Second
	}
	if c.Sheet.CredentialsFile == "" {
		c.Sheet.CredentialsFile = "credentials.json"
	}
	if c.Sheet.ResultsLogSheet == "" {
		c.Sheet.ResultsLogSheet = c.Sheet.Name + "_wp_import_logs"
	}
	if c.WP.Timeout == 0 {
		c.WP.Timeout = 50 * time.Second
	}
	if c.Callback.Addr == "" {
		c.Callback.Addr = ":8080"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "airsync.db"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 6 * time.Hour
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 15 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks every field required before a sync run can start. It
// fails fast so no partial work is attempted with a broken configuration.
func (c *Config) Validate() error {
	if c.Airtable.Token == "" {
		return fmt.Errorf("config: airtable.token is required")
	}
	if c.Airtable.BaseID == "" {
		return fmt.Errorf("config: airtable.base_id is required")
	}
	if c.Airtable.TableID == "" {
		return fmt.Errorf("config: airtable.table_id is required")
	}
	if len(c.Airtable.Fields) == 0 {
		return fmt.Errorf("config: airtable.fields must list at least one field")
	}
	if c.Airtable.TimestampField == "" {
		return fmt.Errorf("config: airtable.timestamp_field is required")
	}
	found := false
	for _, f := range c.Airtable.Fields {
		if f == c.Airtable.TimestampField {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config: airtable.timestamp_field %q must be listed in airtable.fields", c.Airtable.TimestampField)
	}
	if c.Sheet.SpreadsheetID == "" {
		return fmt.Errorf("config: sheet.spreadsheet_id is required")
	}
	if c.Sheet.Name == "" {
		return fmt.Errorf("config: sheet.name is required")
	}
	if c.Sync.Timezone != "" {
		if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
			return fmt.Errorf("config: sync.timezone: %w", err)
		}
	}
	return nil
}

// Location resolves the configured display timezone, defaulting to the
// process-local zone.
func (c *Config) Location() *time.Location {
	if c.Sync.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
