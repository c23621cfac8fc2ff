// Package config loads process configuration from defaults, an optional TOML
// file, the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

const (
	// EnvBackendURL names the backend connection string.
	EnvBackendURL = "TASKS_BACKEND_URL"
	// EnvBackendKey names the key used to sign session tokens.
	EnvBackendKey = "TASKS_BACKEND_KEY"
	// EnvAddr names the listen address.
	EnvAddr = "TASKS_ADDR"
	// EnvLogLevel names the log level.
	EnvLogLevel = "TASKS_LOG_LEVEL"

	minKeyLength = 16
)

// Config holds everything read at process start. It is never reloaded.
type Config struct {
	Addr          string        `toml:"addr"`
	BackendURL    string        `toml:"backend_url"`
	BackendKey    string        `toml:"backend_key"`
	SecureCookies bool          `toml:"secure_cookies"`
	ToastTTL      time.Duration `toml:"toast_ttl"`
	ToastLimit    int           `toml:"toast_limit"`
	LogLevel      string        `toml:"log_level"`
	LogFormat     string        `toml:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:       ":8080",
		BackendURL: "sqlite://tasks.db",
		ToastTTL:   4 * time.Second,
		ToastLimit: 5,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load builds a Config from args (without the program name) and the process
// environment.
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("tasktracker", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a TOML config file")
	addr := fs.String("addr", "", "listen address")
	backendURL := fs.String("backend-url", "", "backend connection string (postgres://... or sqlite://path)")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "log format (text, json, logfmt)")
	secure := fs.Bool("secure-cookies", false, "mark session cookies Secure")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if fs.Changed("addr") {
		cfg.Addr = *addr
	}
	if fs.Changed("backend-url") {
		cfg.BackendURL = *backendURL
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = *logFormat
	}
	if fs.Changed("secure-cookies") {
		cfg.SecureCookies = *secure
	}

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		cfg.Addr = v
	}
	if v, ok := lookup(EnvBackendKey); ok && v != "" {
		cfg.BackendKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("TASKS_SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TASKS_SECURE_COOKIES: %w", err)
		}
		cfg.SecureCookies = b
	}

	if v, ok := lookup(EnvBackendURL); ok && v != "" {
		cfg.BackendURL = v
		return nil
	}

	// Older deployments configure Postgres through discrete DB_* variables.
	host, _ := lookup("DB_HOST")
	if host == "" {
		return nil
	}
	port, _ := lookup("DB_PORT")
	user, _ := lookup("DB_USER")
	password, _ := lookup("DB_PASSWORD")
	name, _ := lookup("DB_NAME")
	if port == "" {
		port = "5432"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	cfg.BackendURL = u.String()
	return nil
}

// Validate reports missing or malformed settings.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend url is required"))
	}
	if len(c.BackendKey) < minKeyLength {
		errs = append(errs, fmt.Errorf("backend key must be at least %d bytes (set %s)", minKeyLength, EnvBackendKey))
	}
	if c.ToastTTL <= 0 {
		errs = append(errs, errors.New("toast_ttl must be positive"))
	}
	if c.ToastLimit <= 0 {
		errs = append(errs, errors.New("toast_limit must be positive"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
