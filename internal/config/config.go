package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL       = "https://tvtropes.org"
	defaultDBPath        = "laconic.db"
	defaultLogFile       = "laconic.log"
	defaultLogLevel      = "info"
	defaultPopupWidth    = 48
	defaultPopupDelay    = 500 * time.Millisecond
	defaultPopupDistance = 2
	defaultNestedMode    = "inplace"
)

// Config holds runtime settings for the CLI app.
type Config struct {
	BaseURL  string
	DBPath   string
	LogFile  string
	LogLevel string

	PopupWidth    int
	PopupDelay    time.Duration
	PopupDistance int
	NestedMode    string
}

// Load reads a .env file from the working directory, when present, and then
// the environment. The result is not validated until Validate is called.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFromEnv()
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:    strings.TrimSpace(os.Getenv("LACONIC_BASE_URL")),
		DBPath:     os.Getenv("LACONIC_DB_PATH"),
		LogLevel:   strings.TrimSpace(os.Getenv("LACONIC_LOG_LEVEL")),
		NestedMode: strings.ToLower(strings.TrimSpace(os.Getenv("LACONIC_NESTED_MODE"))),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	// An explicitly empty log file turns logging off.
	if file, ok := os.LookupEnv("LACONIC_LOG_FILE"); ok {
		cfg.LogFile = strings.TrimSpace(file)
	} else {
		cfg.LogFile = defaultLogFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.NestedMode == "" {
		cfg.NestedMode = defaultNestedMode
	}

	var err error
	if cfg.PopupWidth, err = intFromEnv("LACONIC_POPUP_WIDTH", defaultPopupWidth); err != nil {
		return Config{}, err
	}
	if cfg.PopupDistance, err = intFromEnv("LACONIC_POPUP_DISTANCE", defaultPopupDistance); err != nil {
		return Config{}, err
	}
	if cfg.PopupDelay, err = durationFromEnv("LACONIC_POPUP_DELAY", defaultPopupDelay); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Overrides are command-line values that take precedence over the
// environment. Empty fields leave the loaded value in place.
type Overrides struct {
	LogLevel   string
	NestedMode string
}

func (c Config) WithOverrides(o Overrides) Config {
	if level := strings.TrimSpace(o.LogLevel); level != "" {
		c.LogLevel = level
	}
	if mode := strings.ToLower(strings.TrimSpace(o.NestedMode)); mode != "" {
		c.NestedMode = mode
	}
	return c
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("BaseURL must be http or https: %s", c.BaseURL)
	}
	if c.BaseURL[len(c.BaseURL)-1] == '/' {
		return fmt.Errorf("BaseURL must not end with '/': %s", c.BaseURL)
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LogLevel must be debug, info, warn or error: %s", c.LogLevel)
	}
	if c.PopupWidth < 8 {
		return fmt.Errorf("PopupWidth must be at least 8 cells: %d", c.PopupWidth)
	}
	if c.PopupDistance < 0 {
		return fmt.Errorf("PopupDistance must not be negative: %d", c.PopupDistance)
	}
	if c.PopupDelay <= 0 {
		return fmt.Errorf("PopupDelay must be positive: %s", c.PopupDelay)
	}
	if c.NestedMode != "inplace" && c.NestedMode != "flat" {
		return fmt.Errorf("NestedMode must be inplace or flat: %s", c.NestedMode)
	}
	return nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
