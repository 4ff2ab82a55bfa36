package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cursorbeacon/cursorbeacon/internal/config"
)

// Version info set via ldflags at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123 -X main.date=2026-01-01"
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "cursorbeacon"

var configPath string

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Pointer locator with a proximity status glyph",
	Long: `cursorbeacon keeps a small arrow in the system tray that points toward
the mouse pointer and changes color with its distance, and on demand plays a
converge animation around the pointer.

Examples:
  cursorbeacon start
  cursorbeacon locate
  cursorbeacon set --frequency high
  cursorbeacon report week
  cursorbeacon stop

Environment Variables:
  CURSORBEACON_DATABASE_PATH     History database file path
  CURSORBEACON_DAEMON_PID_FILE   PID file path
  CURSORBEACON_SINK_KIND         Status sink (tray, png)
  CURSORBEACON_WEB_PORT          Web API port
  CURSORBEACON_DEBUG             Enable debug logging`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/cursorbeacon/config.yaml)")
}

// loadConfig reads and validates the configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
