package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwulff/stmtimport/internal/logger"
	"github.com/jwulff/stmtimport/internal/session"
)

// Config represents the stmtimport config.yaml.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Import  ImportConfig  `yaml:"import"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
	History HistoryConfig `yaml:"history"`
}

// APIConfig locates the finance backend.
type APIConfig struct {
	URL                  string  `yaml:"url"`
	Token                string  `yaml:"token,omitempty"`
	PageFetchesPerSecond float64 `yaml:"page_fetches_per_second"`
	PageFetchBurst       int     `yaml:"page_fetch_burst"`
}

// ImportConfig holds per-import defaults.
type ImportConfig struct {
	AccountID      string `yaml:"account_id,omitempty"`
	Method         string `yaml:"method"` // auto, ocr, ai or hybrid
	AIModel        string `yaml:"ai_model,omitempty"`
	TableType      string `yaml:"table_type,omitempty"`
	SkipDuplicates bool   `yaml:"skip_duplicates"`
	AddTag         bool   `yaml:"add_tag"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// DisplayConfig controls the terminal UI.
type DisplayConfig struct {
	PageScale     float64 `yaml:"page_scale"`
	NoticeSeconds int     `yaml:"notice_seconds"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// HistoryConfig controls the local import ledger.
type HistoryConfig struct {
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled"`
}

// DefaultPath returns $XDG_CONFIG_HOME/stmtimport/config.yaml or the
// platform equivalent.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			home, _ := os.UserHomeDir()
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, "stmtimport", "config.yaml")
}

// Load reads a config file from disk. Keys missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:                  "http://localhost:8000/api",
			PageFetchesPerSecond: 4,
			PageFetchBurst:       2,
		},
		Import: ImportConfig{
			Method:         "auto",
			SkipDuplicates: true,
			AddTag:         true,
			MaxUploadBytes: 20 << 20,
		},
		Display: DisplayConfig{
			PageScale:     1.5,
			NoticeSeconds: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyEnv overrides cfg from STMTIMPORT_* environment variables.
func (c *Config) ApplyEnv() {
	c.API.URL = envStr("STMTIMPORT_API_URL", c.API.URL)
	c.API.Token = envStr("STMTIMPORT_TOKEN", c.API.Token)
	c.API.PageFetchesPerSecond = envFloat("STMTIMPORT_PAGE_FETCHES_PER_SECOND", c.API.PageFetchesPerSecond)
	c.Import.AccountID = envStr("STMTIMPORT_ACCOUNT_ID", c.Import.AccountID)
	c.Import.Method = envStr("STMTIMPORT_METHOD", c.Import.Method)
	c.Import.AIModel = envStr("STMTIMPORT_AI_MODEL", c.Import.AIModel)
	c.Log.Level = envStr("STMTIMPORT_LOG_LEVEL", c.Log.Level)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.API.URL)
	switch {
	case c.API.URL == "":
		errs = append(errs, errors.New("api.url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("api.url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("api.url %q: scheme must be http or https", c.API.URL))
	}
	if c.API.PageFetchesPerSecond < 0 {
		errs = append(errs, errors.New("api.page_fetches_per_second must not be negative"))
	}
	if _, err := c.ProcessingMethod(); err != nil {
		errs = append(errs, fmt.Errorf("import.method: %w", err))
	}
	if c.Import.AccountID != "" {
		if _, err := strconv.ParseInt(c.Import.AccountID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("import.account_id %q is not a number", c.Import.AccountID))
		}
	}
	if c.Import.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("import.max_upload_bytes must not be negative"))
	}
	if !(c.Display.PageScale > 0 && c.Display.PageScale <= 4) {
		errs = append(errs, fmt.Errorf("display.page_scale %v must be in (0, 4]", c.Display.PageScale))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ProcessingMethod parses Import.Method.
func (c *Config) ProcessingMethod() (session.Method, error) {
	return session.ParseMethod(strings.ToLower(strings.TrimSpace(c.Import.Method)))
}

// HistoryPath returns the ledger path, or "" when history is disabled.
func (c *Config) HistoryPath(fallback string) string {
	if c.History.Disabled {
		return ""
	}
	if c.History.Path != "" {
		return c.History.Path
	}
	return fallback
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}
