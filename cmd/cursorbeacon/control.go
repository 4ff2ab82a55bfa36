package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cursorbeacon/cursorbeacon/internal/config"
	"github.com/cursorbeacon/cursorbeacon/internal/daemon"
	"github.com/cursorbeacon/cursorbeacon/internal/settings"
	"github.com/cursorbeacon/cursorbeacon/internal/ticker"
	"github.com/cursorbeacon/cursorbeacon/pkg/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status, settings and the live proximity sample",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Play the converge animation around the pointer",
	Long: `Ask the running daemon to reveal the pointer. Bind this to a hotkey in
your window manager, e.g. for i3:

  bindsym $mod+period exec --no-startup-id cursorbeacon locate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return daemon.New(cfg.Daemon.PIDFile).Locate()
	},
}

var (
	setEnabled   bool
	setFrequency string
	setInterval  time.Duration
	setOffsetX   int
	setOffsetY   int
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the proximity glyph settings",
	Long: `Change the persisted proximity glyph settings. A running daemon reloads
them immediately.

Examples:
  cursorbeacon set --enabled=false
  cursorbeacon set --frequency high
  cursorbeacon set --interval 250ms
  cursorbeacon set --offset-x 40 --offset-y 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSettings(cmd)
	},
}

func init() {
	setCmd.Flags().BoolVar(&setEnabled, "enabled", true, "show the live proximity glyph")
	setCmd.Flags().StringVar(&setFrequency, "frequency", "", "update rate: low, medium, high or custom")
	setCmd.Flags().DurationVar(&setInterval, "interval", 0, "custom update interval (implies --frequency custom)")
	setCmd.Flags().IntVar(&setOffsetX, "offset-x", 0, "horizontal anchor offset in pixels")
	setCmd.Flags().IntVar(&setOffsetY, "offset-y", 0, "vertical anchor offset in pixels")

	rootCmd.AddCommand(statusCmd, locateCmd, setCmd)
}

func updateSettings(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := settings.Open(settings.AppName)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	st, err := store.Update(func(st *settings.Settings) error {
		if flags.Changed("enabled") {
			st.Enabled = setEnabled
		}
		if flags.Changed("frequency") {
			f, err := settings.ParseFrequency(setFrequency)
			if err != nil {
				return err
			}
			st.Frequency = f
		}
		if flags.Changed("interval") {
			st.Frequency = settings.FrequencyCustom
			st.IntervalMs = int(setInterval.Milliseconds())
		}
		if flags.Changed("offset-x") {
			st.OffsetX = setOffsetX
		}
		if flags.Changed("offset-y") {
			st.OffsetY = setOffsetY
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Settings saved: ") + st.String())

	if err := daemon.New(cfg.Daemon.PIDFile).Reload(); err != nil {
		fmt.Println(warnStyle.Render("Daemon not reloaded: ") + err.Error())
	}
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	var lines []string
	if running {
		lines = append(lines, field("Status:", successStyle.Render(fmt.Sprintf("Running (PID: %d)", pid))))
	} else {
		lines = append(lines, field("Status:", warnStyle.Render("Not running")))
	}
	lines = append(lines,
		field("Sink:", cfg.Sink.Kind),
		field("Database:", cfg.Database.Path),
	)
	if cfg.Web.Enabled {
		lines = append(lines, field("Web API:", "http://"+cfg.WebAddress()))
	}
	fmt.Println(section("cursorbeacon", lines...))

	if store, err := settings.Open(settings.AppName); err == nil {
		st, err := store.Load()
		if err != nil {
			fmt.Println(warnStyle.Render("Settings unreadable, defaults in use: ") + err.Error())
		}
		interval, _ := st.Interval()
		fmt.Println(section("Settings",
			field("Enabled:", st.Enabled),
			field("Frequency:", fmt.Sprintf("%s (%v)", st.Frequency, interval)),
			field("Anchor offset:", fmt.Sprintf("%d, %d", st.OffsetX, st.OffsetY)),
		))
	}

	if running && cfg.Web.Enabled {
		if live, err := fetchLive(cfg); err == nil {
			fmt.Println(liveSection(live))
		}
	}
	return nil
}

// liveStatus mirrors the daemon's /api/status response
type liveStatus struct {
	Running        bool           `json:"running"`
	Interval       string         `json:"interval"`
	ActiveSessions int            `json:"active_sessions"`
	DisplayServer  string         `json:"display_server"`
	Stats          ticker.Stats   `json:"stats"`
	Sample         *ticker.Sample `json:"sample"`
}

func fetchLive(cfg *config.Config) (*liveStatus, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + cfg.WebAddress() + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var live liveStatus
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		return nil, err
	}
	return &live, nil
}

func liveSection(live *liveStatus) string {
	lines := []string{
		field("Display:", live.DisplayServer),
		field("Ticking:", fmt.Sprintf("%t every %s", live.Running, live.Interval)),
		field("Ticks:", fmt.Sprintf("%d published, %d skipped", live.Stats.Published, live.Stats.Skipped)),
		field("Animations:", live.ActiveSessions),
	}
	if s := live.Sample; s != nil {
		lines = append(lines,
			field("Pointer:", fmt.Sprintf("%d, %d", s.Pointer.X, s.Pointer.Y)),
			field("Anchor:", fmt.Sprintf("%d, %d", s.Anchor.X, s.Anchor.Y)),
			field("Bearing:", fmt.Sprintf("%.1f°", s.Bearing)),
			field("Distance:", swatch(s.Color, fmt.Sprintf("%.0fpx (band %d)", s.Distance, s.Band))),
			field("Sampled:", utils.FormatRoundedUnit(int64(time.Since(s.At).Seconds()))+" ago"),
		)
	}
	return section("Live", lines...)
}
