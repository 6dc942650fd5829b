// Package config loads the plotview command configuration from TOML.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/abemedia/plotview"
)

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds plotview configuration
type Config struct {
	// Title is the window title.
	Title string `toml:"title,omitempty"`

	// Width and Height are the initial window size in pixels.
	// Default: 800x600
	Width  int `toml:"width,omitempty"`
	Height int `toml:"height,omitempty"`

	// Debug enables the webview developer tools.
	Debug bool `toml:"debug,omitempty"`

	// Delivery selects how the page loads Plotly.js.
	// Valid values: "inline", "fetch" (default), "cdn", "server"
	Delivery string `toml:"delivery,omitempty"`

	// Routing selects how chart events reach the host.
	// Valid values: "single" (default), "per-type"
	Routing string `toml:"routing,omitempty"`

	// CDNURL overrides the Plotly.js location for the "cdn" delivery.
	CDNURL string `toml:"cdn_url,omitempty"`

	// HandshakeTimeout bounds the page handshake.
	// Default: 10s
	HandshakeTimeout Duration `toml:"handshake_timeout,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level,omitempty"`

	Browser BrowserConfig `toml:"browser,omitempty"`
	Metrics MetricsConfig `toml:"metrics,omitempty"`
}

// BrowserConfig configures the browser surface.
type BrowserConfig struct {
	// Listen is the address the shell page is served on.
	// Default: 127.0.0.1:8765
	Listen string `toml:"listen,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint. It is disabled when Listen
// is empty.
type MetricsConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Title:            "plotview",
		Width:            800,
		Height:           600,
		Delivery:         string(plotview.DeliveryFetch),
		Routing:          string(plotview.RoutingSingle),
		HandshakeTimeout: Duration{10 * time.Second},
		LogLevel:         "info",
		Browser:          BrowserConfig{Listen: "127.0.0.1:8765"},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: unknown keys %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if _, err := plotview.ParseDelivery(c.Delivery); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := plotview.ParseRouting(c.Routing); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: invalid window size %dx%d", c.Width, c.Height)
	}
	if c.HandshakeTimeout.Duration < 0 {
		return fmt.Errorf("config: negative handshake_timeout %s", c.HandshakeTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Options converts the configuration into widget options.
func (c *Config) Options() plotview.Options {
	return plotview.Options{
		Delivery:         plotview.Delivery(c.Delivery),
		Routing:          plotview.Routing(c.Routing),
		CDNURL:           c.CDNURL,
		HandshakeTimeout: c.HandshakeTimeout.Duration,
	}
}
