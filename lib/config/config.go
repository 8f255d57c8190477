// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/secret"
)

// contentKeySize is the required size of the content encryption key,
// matching the content store's KeySize.
const contentKeySize = 32

// Config is the configuration shared by weft-space-service and the
// weft CLI.
type Config struct {
	// SocketPath is the Unix socket the daemon serves and the CLI
	// connects to.
	SocketPath string `yaml:"socket_path"`

	// DataDir holds the space database, content side files, and by
	// default the keyfile.
	DataDir string `yaml:"data_dir"`

	// Space names the space database file under DataDir (without the
	// .db suffix). One daemon serves one space.
	Space string `yaml:"space"`

	// Keyfile locates the space's sealed signing identity.
	Keyfile KeyfileConfig `yaml:"keyfile"`

	// Log configures the daemon logger.
	Log LogConfig `yaml:"log"`

	// Content configures blob storage.
	Content ContentConfig `yaml:"content"`

	// SchemaDir, when set, is watched by the daemon: schema documents
	// dropped into it are load-or-created automatically.
	SchemaDir string `yaml:"schema_dir"`

	// Roots are additional trusted capability roots (hex ed25519
	// public keys) beyond the space identity.
	Roots []string `yaml:"roots"`

	// Limits bound what the boundary accepts.
	Limits LimitsConfig `yaml:"limits"`
}

// KeyfileConfig locates the sealed signing identity and its
// passphrase. The passphrase comes from the environment variable
// named by PassphraseEnv, or from the file at PassphraseFile when the
// variable is unset or empty.
type KeyfileConfig struct {
	Path           string `yaml:"path"`
	PassphraseEnv  string `yaml:"passphrase_env"`
	PassphraseFile string `yaml:"passphrase_file"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level name to a slog level. Unknown
// names (already rejected by Validate) map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContentConfig configures blob storage. When KeyFile is set, blobs
// are encrypted at rest with keys derived from the file's contents.
type ContentConfig struct {
	// KeyFile is a file holding the space content key as 64 hex
	// characters. Empty disables at-rest encryption.
	KeyFile string `yaml:"key_file"`
}

// LimitsConfig bounds what the boundary accepts. Zero values mean
// unlimited.
type LimitsConfig struct {
	// MaxValueBytes caps the size of a single row value.
	MaxValueBytes int `yaml:"max_value_bytes"`

	// MaxQueryLimit caps the page size of query actions. Requests
	// asking for more, or for everything, get at most this many rows
	// per page; offsets still reach the rest.
	MaxQueryLimit int `yaml:"max_query_limit"`
}

// Default returns the default configuration. These defaults are a
// base for the config file, not a substitute for one: the keyfile
// passphrase source in particular must come from the operator.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "weft")

	return &Config{
		SocketPath: filepath.Join(dataDir, "space.sock"),
		DataDir:    dataDir,
		Space:      "main",
		Keyfile: KeyfileConfig{
			Path:          filepath.Join(dataDir, "space.key"),
			PassphraseEnv: "WEFT_PASSPHRASE",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Limits: LimitsConfig{
			MaxValueBytes: 256 * 1024,
		},
	}
}

// Load loads configuration from the file named by WEFT_CONFIG, or
// returns the built-in defaults when the variable is unset. A set but
// unreadable WEFT_CONFIG is an error, not a silent fallback.
func Load() (*Config, error) {
	path := os.Getenv("WEFT_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults and expanding path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. ${WEFT_DATA} resolves to the configured data directory so
// dependent paths can be expressed relative to it.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WEFT_DATA": c.DataDir,
		"HOME":      os.Getenv("HOME"),
	}

	c.DataDir = expandVars(c.DataDir, vars)
	vars["WEFT_DATA"] = c.DataDir

	c.SocketPath = expandVars(c.SocketPath, vars)
	c.Keyfile.Path = expandVars(c.Keyfile.Path, vars)
	c.Keyfile.PassphraseFile = expandVars(c.Keyfile.PassphraseFile, vars)
	c.Content.KeyFile = expandVars(c.Content.KeyFile, vars)
	c.SchemaDir = expandVars(c.SchemaDir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}
	if c.Space == "" {
		errs = append(errs, fmt.Errorf("space is required"))
	} else if strings.ContainsRune(c.Space, os.PathSeparator) {
		errs = append(errs, fmt.Errorf("space must be a bare name, not a path: %q", c.Space))
	}
	if c.Keyfile.Path == "" {
		errs = append(errs, fmt.Errorf("keyfile.path is required"))
	}
	if c.Keyfile.PassphraseEnv == "" && c.Keyfile.PassphraseFile == "" {
		errs = append(errs, fmt.Errorf("one of keyfile.passphrase_env or keyfile.passphrase_file is required"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"json", "text"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if c.Limits.MaxValueBytes < 0 {
		errs = append(errs, fmt.Errorf("limits.max_value_bytes must not be negative"))
	}
	if c.Limits.MaxQueryLimit < 0 {
		errs = append(errs, fmt.Errorf("limits.max_query_limit must not be negative"))
	}

	if _, err := c.RootKeys(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SpacePath returns the filesystem path of the space database.
func (c *Config) SpacePath() string {
	return filepath.Join(c.DataDir, c.Space+".db")
}

// RootKeys parses the configured trusted roots.
func (c *Config) RootKeys() ([]event.PubKey, error) {
	keys := make([]event.PubKey, 0, len(c.Roots))
	for _, raw := range c.Roots {
		key, err := event.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("roots: %q: %w", raw, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Passphrase reads the keyfile passphrase into protected memory, from
// the configured environment variable first and the passphrase file
// second. The caller owns the buffer and must Close it.
func (c *Config) Passphrase() (*secret.Buffer, error) {
	if c.Keyfile.PassphraseEnv != "" {
		if value := os.Getenv(c.Keyfile.PassphraseEnv); value != "" {
			return secret.NewFromBytes([]byte(value))
		}
	}
	if c.Keyfile.PassphraseFile != "" {
		return secret.ReadFromPath(c.Keyfile.PassphraseFile)
	}
	return nil, fmt.Errorf("no passphrase: %s is unset and no keyfile.passphrase_file is configured",
		c.Keyfile.PassphraseEnv)
}

// ContentKey reads the content encryption key into protected memory.
// Returns (nil, nil) when no key file is configured, meaning blobs
// are stored unencrypted. The caller owns the buffer and must Close
// it after the space is closed.
func (c *Config) ContentKey() (*secret.Buffer, error) {
	if c.Content.KeyFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(c.Content.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("content.key_file: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("content.key_file: not hex: %w", err)
	}
	if len(decoded) != contentKeySize {
		secret.Zero(decoded)
		return nil, fmt.Errorf("content.key_file: key is %d bytes, want %d", len(decoded), contentKeySize)
	}
	return secret.NewFromBytes(decoded)
}

// EnsurePaths creates the data directory if it does not exist.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.DataDir, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
