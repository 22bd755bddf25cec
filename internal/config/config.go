// Package config loads the rtpsocketd configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the daemon settings.
type Config struct {
	// Listen is the local host:port both root sockets bind to.
	Listen string `yaml:"listen"`
	// AllowedHost restricts the endpoint to one peer IP. Empty admits all.
	AllowedHost string `yaml:"allowed_host"`
	// Name labels the manager in logs and metrics.
	Name string `yaml:"name"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// LogFile is a path for rotated log output; empty or "console" logs to stderr.
	LogFile string `yaml:"log_file"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

var (
	// ErrInvalidListen indicates the listen endpoint could not be parsed.
	ErrInvalidListen = errors.New("invalid listen address")

	// ErrInvalidAllowedHost indicates the allowed host is not an IP address.
	ErrInvalidAllowedHost = errors.New("allowed host must be an IP address")

	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("log format must be text or json")
)

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Listen:    "0.0.0.0:5000",
		Name:      "rtp",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
	}).Debug("Loaded configuration file")

	return cfg, nil
}

// Validate checks that every field can be used.
func (c *Config) Validate() error {
	if _, err := c.ListenAddr(); err != nil {
		return err
	}
	if _, err := c.AllowedAddr(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	return nil
}

// ListenAddr parses Listen into a UDP endpoint.
func (c *Config) ListenAddr() (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidListen, c.Listen, err)
	}
	if host != "" && net.ParseIP(host) == nil {
		return nil, fmt.Errorf("%w %q: host must be an IP address", ErrInvalidListen, c.Listen)
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidListen, c.Listen, err)
	}
	return addr, nil
}

// AllowedAddr parses AllowedHost. It returns nil when no host is configured.
// A port, if present, is accepted and ignored by admission.
func (c *Config) AllowedAddr() (net.Addr, error) {
	if c.AllowedHost == "" {
		return nil, nil
	}

	host := c.AllowedHost
	port := 0
	if h, p, err := net.SplitHostPort(c.AllowedHost); err == nil {
		host = h
		if addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort("", p)); err == nil {
			port = addr.Port
		}
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAllowedHost, c.AllowedHost)
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}
