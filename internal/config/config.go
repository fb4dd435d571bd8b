package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/unenki/pkg/ansiencode"
)

const (
	// DefaultListenAddr is the default HTTP API listen address.
	DefaultListenAddr = ":8080"

	// DefaultMaxBodyBytes caps HTTP request bodies. Inputs are fully
	// materialized, so the cap bounds per-request memory.
	DefaultMaxBodyBytes = 1 << 20

	// TableHTML selects ansiencode.HTMLTable.
	TableHTML = "html"

	// TableControl selects ansiencode.ControlTable.
	TableControl = "control"
)

// Config holds all configuration for unenki.
type Config struct {
	Encode  EncodeConfig  `mapstructure:"encode" yaml:"encode"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
}

// EncodeConfig holds the default options applied by every encode call.
type EncodeConfig struct {
	Table string      `mapstructure:"table" yaml:"table"`
	Keep  []string    `mapstructure:"keep" yaml:"keep"`
	Force []ForceRule `mapstructure:"force" yaml:"force"`
}

// ForceRule maps one character to its forced replacement.
// Rules are a list rather than a map because viper folds map keys to lower case.
type ForceRule struct {
	Char        string `mapstructure:"char" yaml:"char"`
	Replacement string `mapstructure:"replacement" yaml:"replacement"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr   string `mapstructure:"listen_addr" yaml:"listen_addr"`
	AuthToken    string `mapstructure:"auth_token" yaml:"auth_token"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// String returns a safe representation of APIConfig with the token masked.
func (c APIConfig) String() string {
	return fmt.Sprintf("APIConfig{ListenAddr:%s, AuthToken:%s, MaxBodyBytes:%d}",
		c.ListenAddr, maskToken(c.AuthToken), c.MaxBodyBytes)
}

// maskToken shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskToken(token string) string {
	const visible = 4
	if token == "" {
		return ""
	}
	if len(token) <= visible*2 {
		return "***"
	}
	return token[:visible] + "****" + token[len(token)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from file and environment variables.
// An empty configFile searches ~/.unenki and the working directory for
// config.yaml; a missing file there is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("encode.table", TableHTML)
	v.SetDefault("encode.keep", []string{})
	v.SetDefault("encode.force", []ForceRule{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", DefaultListenAddr)
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.max_body_bytes", DefaultMaxBodyBytes)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".unenki"))
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("UNENKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK; use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Encode.Table {
	case TableHTML, TableControl:
	default:
		return fmt.Errorf("encode.table must be %q or %q, got %q", TableHTML, TableControl, c.Encode.Table)
	}
	for i, k := range c.Encode.Keep {
		if utf8.RuneCountInString(k) != 1 {
			return fmt.Errorf("encode.keep[%d] must be a single character, got %q", i, k)
		}
	}
	for i, f := range c.Encode.Force {
		if utf8.RuneCountInString(f.Char) != 1 {
			return fmt.Errorf("encode.force[%d].char must be a single character, got %q", i, f.Char)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be greater than 0")
	}
	return nil
}

// Options converts the configured keep and force lists to encoder options.
// Entries are assumed to have passed Validate.
func (c EncodeConfig) Options() *ansiencode.Options {
	opts := &ansiencode.Options{}
	for _, k := range c.Keep {
		r, _ := utf8.DecodeRuneInString(k)
		opts.Keep = append(opts.Keep, r)
	}
	if len(c.Force) > 0 {
		opts.Force = make(map[rune]string, len(c.Force))
		for _, f := range c.Force {
			r, _ := utf8.DecodeRuneInString(f.Char)
			opts.Force[r] = f.Replacement
		}
	}
	return opts
}

// Encoder returns an encoder for the configured reference table.
func (c EncodeConfig) Encoder() *ansiencode.Encoder {
	if c.Table == TableControl {
		return ansiencode.New(ansiencode.ControlTable)
	}
	return ansiencode.New(ansiencode.HTMLTable)
}

// Redacted returns a copy of c that is safe to print.
func (c Config) Redacted() Config {
	c.API.AuthToken = maskToken(c.API.AuthToken)
	return c
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
