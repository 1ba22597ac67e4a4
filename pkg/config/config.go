// Package config loads fluxstats configuration.
//
// Values are resolved in order: defaults, an optional YAML file, then
// FLUXSTATS_ environment variables. Nested keys use a double underscore in
// variable names, so FLUXSTATS_SERVER__PORT sets server.port. Command line
// flags are applied by the caller on top of the loaded value before
// Validate is called.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fluxstats/fluxstats/pkg/archive"
	"github.com/fluxstats/fluxstats/pkg/collector/census"
	"github.com/fluxstats/fluxstats/pkg/dashboard"
	"github.com/fluxstats/fluxstats/pkg/flux"
	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/server"
)

const (
	// EnvPrefix prefixes every configuration variable.
	EnvPrefix = "FLUXSTATS_"

	// DefaultDataDir holds the snapshot files.
	DefaultDataDir = "data"

	// DefaultLogFile receives the debug log.
	DefaultLogFile = "app.log"

	delim = "."
)

// Log configures logging.
type Log struct {
	File         string `json:"file" yaml:"file" koanf:"file"`
	FileLevel    string `json:"fileLevel" yaml:"fileLevel" koanf:"filelevel" validate:"omitempty,oneof=debug info warn warning error"`
	ConsoleLevel string `json:"consoleLevel" yaml:"consoleLevel" koanf:"consolelevel" validate:"omitempty,oneof=debug info warn warning error"`
	Format       string `json:"format" yaml:"format" koanf:"format" validate:"omitempty,oneof=text json"`
}

// Config is the complete fluxstats configuration.
type Config struct {
	DataDir string `json:"dataDir" yaml:"dataDir" koanf:"datadir" validate:"required"`

	Endpoints   flux.Endpoints `json:"endpoints" yaml:"endpoints" koanf:"endpoints"`
	HTTPTimeout time.Duration  `json:"httpTimeout" yaml:"httpTimeout" koanf:"httptimeout" validate:"gt=0"`

	// StaleAfter is the age past which a snapshot is recollected.
	StaleAfter time.Duration `json:"staleAfter" yaml:"staleAfter" koanf:"staleafter" validate:"gt=0"`

	// Schedule is the cron spec of staleness checks.
	Schedule string `json:"schedule" yaml:"schedule" koanf:"schedule" validate:"required"`

	// Denylist holds image names excluded from the census.
	Denylist []string `json:"denylist" yaml:"denylist" koanf:"denylist"`

	Server    server.Config     `json:"server" yaml:"server" koanf:"server"`
	Dashboard dashboard.Options `json:"dashboard" yaml:"dashboard" koanf:"dashboard"`
	Log       Log               `json:"log" yaml:"log" koanf:"log"`
	Archive   archive.Options   `json:"archive" yaml:"archive" koanf:"archive"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		DataDir:     DefaultDataDir,
		Endpoints:   flux.DefaultEndpoints(),
		HTTPTimeout: flux.DefaultTimeout,
		StaleAfter:  scheduler.DefaultThreshold,
		Schedule:    scheduler.DefaultSchedule,
		Denylist:    append([]string(nil), census.DefaultDenylist...),
		Server:      *server.DefaultConfig(),
		Dashboard:   dashboard.DefaultOptions(),
		Log: Log{
			File:         DefaultLogFile,
			FileLevel:    "debug",
			ConsoleLevel: "info",
			Format:       "text",
		},
		Archive: archive.Options{Tag: archive.DefaultTag},
	}
}

// Load resolves the configuration. path names an optional YAML file; envFiles
// are .env files loaded into the environment first, missing ones ignored.
// The result is not validated.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load env file %q: %w", f, err)
		}
		slog.Debug("env file loaded", "path", f)
	}

	k := koanf.New(delim)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %q: %w", path, err)
		}
		slog.Debug("config file loaded", "path", path)
	}

	if err := k.Load(env.Provider(EnvPrefix, delim, envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// envKey maps FLUXSTATS_SERVER__RATELIMIT to server.ratelimit.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", delim)
}

var validate = validator.New()

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a URL, got %q", field, fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
