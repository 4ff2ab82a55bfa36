package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Sink kinds
const (
	SinkTray = "tray"
	SinkPNG  = "png"
)

// Config holds all static process configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Daemon configuration
	Daemon DaemonConfig `mapstructure:"daemon"`

	// Converge animation configuration
	Animator AnimatorConfig `mapstructure:"animator"`

	// Display server connection
	Display DisplayConfig `mapstructure:"display"`

	// Status icon sink configuration
	Sink SinkConfig `mapstructure:"sink"`

	// Web server configuration
	Web WebConfig `mapstructure:"web"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // Path to SQLite database file
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file"` // Path to PID file for daemon management
	LogFile string `mapstructure:"log_file"` // Log destination of the detached daemon
}

// AnimatorConfig tunes the converge animation
type AnimatorConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	MarkerColor   string        `mapstructure:"marker_color"` // hex, e.g. #ff6347
	RingColor     string        `mapstructure:"ring_color"`
}

// DisplayConfig selects the X display
type DisplayConfig struct {
	Name string `mapstructure:"name"` // Empty means $DISPLAY
}

// SinkConfig selects where the proximity glyph goes
type SinkConfig struct {
	Kind       string `mapstructure:"kind"`       // tray or png
	PNGPath    string `mapstructure:"png_path"`   // Output file for the png sink
	Background string `mapstructure:"background"` // Tray background when no ARGB visual is offered
}

// WebConfig holds web server configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"` // Host to bind web server to
	Port    int    `mapstructure:"port"` // Port for web server
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/cursorbeacon/cursorbeacon.db
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/cursorbeacon-%d.pid", os.Getuid()),
			LogFile: fmt.Sprintf("/tmp/cursorbeacon-%d.log", os.Getuid()),
		},
		Animator: AnimatorConfig{
			FrameInterval: 16 * time.Millisecond,
			MarkerColor:   "#ff6347",
			RingColor:     "#00bfff",
		},
		Display: DisplayConfig{
			Name: "",
		},
		Sink: SinkConfig{
			Kind:       SinkTray,
			PNGPath:    fmt.Sprintf("/tmp/cursorbeacon-%d.png", os.Getuid()),
			Background: "#2b2b2b",
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    12000 + os.Getuid()%50000, // Default port based on user ID
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Animator.FrameInterval <= 0 {
		return errors.Errorf("frame interval must be positive, got %v", c.Animator.FrameInterval)
	}
	if c.Animator.FrameInterval > time.Second {
		return errors.Errorf("frame interval cannot exceed 1s, got %v", c.Animator.FrameInterval)
	}

	for name, hex := range map[string]string{
		"marker color":    c.Animator.MarkerColor,
		"ring color":      c.Animator.RingColor,
		"sink background": c.Sink.Background,
	} {
		if _, err := ParseColor(hex); err != nil {
			return errors.Wrap(err, name)
		}
	}

	switch c.Sink.Kind {
	case SinkTray:
	case SinkPNG:
		if c.Sink.PNGPath == "" {
			return errors.New("png sink needs a path")
		}
	default:
		return errors.Errorf("unknown sink kind %q (want %s or %s)", c.Sink.Kind, SinkTray, SinkPNG)
	}

	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return errors.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return errors.New("web host cannot be empty")
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return errors.New("PID file path cannot be empty")
	}

	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// WebAddress returns host:port of the local API
func (c *Config) WebAddress() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// MarkerColor returns the parsed marker fill colour
func (c *Config) MarkerColor() color.NRGBA {
	col, _ := ParseColor(c.Animator.MarkerColor)
	return col
}

// RingColor returns the parsed ring colour
func (c *Config) RingColor() color.NRGBA {
	col, _ := ParseColor(c.Animator.RingColor)
	return col
}

// SinkBackground returns the parsed tray background colour
func (c *Config) SinkBackground() color.NRGBA {
	col, _ := ParseColor(c.Sink.Background)
	return col
}

// ParseColor parses a #rrggbb colour into an opaque NRGBA
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "invalid colour %q", hex)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Daemon:
    PID File: %s
    Log File: %s
  Animator:
    Frame Interval: %v
    Marker Color: %s
    Ring Color: %s
  Display:
    Name: %s
  Sink:
    Kind: %s
    PNG Path: %s
    Background: %s
  Web:
    Enabled: %v
    Host: %s
    Port: %d`,
		c.Database.Path,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Animator.FrameInterval,
		c.Animator.MarkerColor,
		c.Animator.RingColor,
		c.Display.Name,
		c.Sink.Kind,
		c.Sink.PNGPath,
		c.Sink.Background,
		c.Web.Enabled,
		c.Web.Host,
		c.Web.Port,
	)
}
