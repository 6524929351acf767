package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultConfigPath  = "~/.config/photorename/config.json"
	defaultMaxAttempts = 10
	defaultDebounce    = 2 * time.Second
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "PHOTORENAME_CONFIG"

// Config holds user-editable settings. Command-line flags override them.
type Config struct {
	Logging Logging `json:"logging"`
	Rename  Rename  `json:"rename"`
	Paths   Paths   `json:"paths"`
	Watch   Watch   `json:"watch"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Rename holds batch defaults.
type Rename struct {
	Delimiter       string `json:"delimiter"`    // map file field separator
	MaxAttempts     int    `json:"max_attempts"` // collision suffixes tried per file
	SuffixOrder     string `json:"suffix_order"` // lexical, natural
	Reader          string `json:"reader"`       // native, exiftool, magick
	Strict          bool   `json:"strict"`       // skip files without metadata
	AvoidCollisions bool   `json:"avoid_collisions"`
}

// Paths configures file locations.
type Paths struct {
	// JournalPath is the SQLite rename journal. Empty disables journaling.
	JournalPath string `json:"journal_path"`
}

// Watch configures watch mode.
type Watch struct {
	Debounce Duration `json:"debounce"`
}

// Duration is a time.Duration spelled as "2s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	expanded, err := expandUser(Path())
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the config file location before ~ expansion.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return defaultConfigPath
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Rename: Rename{
			Delimiter:   "\t",
			MaxAttempts: defaultMaxAttempts,
			SuffixOrder: "lexical",
			Reader:      "native",
		},
		Paths: Paths{
			JournalPath: "",
		},
		Watch: Watch{
			Debounce: Duration(defaultDebounce),
		},
	}
}

// ExpandUser replaces a leading ~ with the home directory.
func ExpandUser(path string) (string, error) {
	return expandUser(path)
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
