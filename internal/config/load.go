package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. CURSORBEACON_WEB_PORT
	EnvPrefix = "CURSORBEACON"
	// GlobalConfigDir is the directory for the config file, relative to home
	GlobalConfigDir = ".config/cursorbeacon"
	// GlobalConfigFile is the config file name
	GlobalConfigFile = "config.yaml"
)

// Load reads configuration. Defaults are overridden by the config file (path,
// or the global config file when path is empty and it exists), which is
// overridden by CURSORBEACON_* environment variables.
func Load(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		path = globalConfigPath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config format")
	}
	return cfg, nil
}

// New loads configuration from the global config file and environment. An
// unreadable config file is ignored and defaults plus environment are used.
func New() *Config {
	cfg, err := Load("")
	if err != nil {
		cfg = Default()
		_ = newViper().Unmarshal(cfg)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// globalConfigPath returns ~/.config/cursorbeacon/config.yaml if it exists
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("daemon.pid_file", d.Daemon.PIDFile)
	v.SetDefault("daemon.log_file", d.Daemon.LogFile)

	v.SetDefault("animator.frame_interval", d.Animator.FrameInterval.String())
	v.SetDefault("animator.marker_color", d.Animator.MarkerColor)
	v.SetDefault("animator.ring_color", d.Animator.RingColor)

	v.SetDefault("display.name", d.Display.Name)

	v.SetDefault("sink.kind", d.Sink.Kind)
	v.SetDefault("sink.png_path", d.Sink.PNGPath)
	v.SetDefault("sink.background", d.Sink.Background)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.host", d.Web.Host)
	v.SetDefault("web.port", d.Web.Port)
}
