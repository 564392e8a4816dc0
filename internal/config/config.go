// Package config loads session settings from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Environment variables read by Load.
const (
	EnvConfigFile   = "LAMBDAFIX_CONFIG"
	EnvLogLevel     = "LAMBDAFIX_LOG_LEVEL"
	EnvLogFormat    = "LAMBDAFIX_LOG_FORMAT"
	EnvDefaultScope = "LAMBDAFIX_DEFAULT_SCOPE"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds session settings.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	DefaultScope string `yaml:"default_scope"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:     logrus.WarnLevel.String(),
		LogFormat:    FormatText,
		DefaultScope: fixture.ScopeFunction.String(),
	}
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv, os.ReadFile)
}

// Load starts from Default, applies the YAML file named by EnvConfigFile if
// set, then the remaining environment variables, and validates the result.
func Load(getenv func(string) string, readFile func(string) ([]byte, error)) (Config, error) {
	cfg := Default()

	if path := getenv(EnvConfigFile); path != "" {
		data, err := readFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}

		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
		}
	}

	if level := getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}

	if format := getenv(EnvLogFormat); format != "" {
		cfg.LogFormat = format
	}

	if scope := getenv(EnvDefaultScope); scope != "" {
		cfg.DefaultScope = scope
	}

	err := cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Logger builds a logger writing to out at the configured level and format.
func (c Config) Logger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %w", ErrInvalid, err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)

	switch strings.ToLower(c.LogFormat) {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("%w: log format %q", ErrInvalid, c.LogFormat)
	}

	return log, nil
}

// Scope returns the configured default fixture scope.
func (c Config) Scope() (fixture.Scope, error) {
	scope, err := fixture.ParseScope(c.DefaultScope)
	if err != nil {
		return fixture.ScopeDefault, fmt.Errorf("%w: default scope: %w", ErrInvalid, err)
	}

	return scope, nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	_, err := c.Logger(io.Discard)
	if err != nil {
		return err
	}

	_, err = c.Scope()

	return err
}

// Exported variables.
var (
	ErrInvalid = errors.New("invalid configuration")
)
