// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sigil-dev/cardhost/internal/secrets"
	cherr "github.com/sigil-dev/cardhost/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. CARDHOST_NETWORKING_LISTEN.
const EnvPrefix = "CARDHOST"

// Config is the top-level cardhost configuration.
type Config struct {
	Networking NetworkingConfig `mapstructure:"networking"`
	DataDir    string           `mapstructure:"data_dir"`
	Plugins    PluginsConfig    `mapstructure:"plugins"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// NetworkingConfig controls how the gateway listens for connections.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// PluginsConfig locates plugin directories and controls hot reload.
type PluginsConfig struct {
	// Dir defaults to <data_dir>/plugins.
	Dir           string        `mapstructure:"dir"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// SecretsConfig selects where tool secrets such as API keys live.
type SecretsConfig struct {
	Backend string `mapstructure:"backend"`
}

// OAuthConfig holds OAuth client registrations per provider.
type OAuthConfig struct {
	Google OAuthClientConfig `mapstructure:"google"`
}

// OAuthClientConfig is one OAuth client. ClientSecret may be a
// keyring://service/key URI.
type OAuthClientConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	secrets secrets.Store
	viper   *viper.Viper
}

// WithSecrets resolves keyring:// values through s before unmarshalling.
func WithSecrets(s secrets.Store) Option {
	return func(o *loadOptions) { o.secrets = s }
}

// WithViper loads from v, which may already carry bound CLI flags.
func WithViper(v *viper.Viper) Option {
	return func(o *loadOptions) { o.viper = v }
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("data_dir", "./data")
	v.SetDefault("plugins.dir", "")
	v.SetDefault("plugins.watch", true)
	v.SetDefault("plugins.watch_debounce", 500*time.Millisecond)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("secrets.backend", "keyring")
	v.SetDefault("oauth.google.scopes", []string{"openid", "email"})
	v.SetDefault("mcp.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix CARDHOST_).
func Load(path string, opts ...Option) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	v := o.viper
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cherr.Errorf(cherr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	if o.secrets != nil {
		if err := secrets.ResolveViperSecrets(v, o.secrets); err != nil {
			return nil, cherr.Wrap(err, cherr.CodeConfigLoadReadFailure, "resolving config secrets")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cherr.Errorf(cherr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cherr.Errorf(cherr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// PluginsDir returns the plugins directory, defaulting under DataDir.
func (c *Config) PluginsDir() string {
	if c.Plugins.Dir != "" {
		return c.Plugins.Dir
	}
	return filepath.Join(c.DataDir, "plugins")
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validatePlugins()...)
	errs = append(errs, c.validateOAuth()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return cherr.Errorf(cherr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q: %w", c.Networking.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("networking.listen port must be a number, got %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %d", port))
		}
	}

	for i, origin := range c.Networking.CORSOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, invalid("networking.cors_origins[%d] must be an absolute origin, got %q", i, origin))
		}
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, invalid("storage.backend must be one of [sqlite, memory], got %q", c.Storage.Backend))
	}

	validSecrets := map[string]bool{"keyring": true, "memory": true}
	if !validSecrets[c.Secrets.Backend] {
		errs = append(errs, invalid("secrets.backend must be one of [keyring, memory], got %q", c.Secrets.Backend))
	}

	if c.DataDir == "" {
		errs = append(errs, invalid("data_dir must not be empty"))
	}

	return errs
}

func (c *Config) validatePlugins() []error {
	var errs []error

	if c.Plugins.WatchDebounce < 0 {
		errs = append(errs, invalid("plugins.watch_debounce must not be negative, got %s", c.Plugins.WatchDebounce))
	}

	return errs
}

func (c *Config) validateOAuth() []error {
	var errs []error

	g := c.OAuth.Google
	if g.ClientID != "" && g.RedirectURL == "" {
		errs = append(errs, invalid("oauth.google.redirect_url is required when client_id is set"))
	}
	if g.RedirectURL != "" {
		u, err := url.Parse(g.RedirectURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, invalid("oauth.google.redirect_url must be an absolute http(s) URL, got %q", g.RedirectURL))
		}
	}
	if secrets.IsKeyringURI(g.ClientSecret) {
		errs = append(errs, invalid("oauth.google.client_secret references the keyring but was not resolved"))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}
