package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cursorbeacon/cursorbeacon/internal/app"
	"github.com/cursorbeacon/cursorbeacon/internal/config"
	"github.com/cursorbeacon/cursorbeacon/internal/daemon"
	"github.com/cursorbeacon/cursorbeacon/internal/database"
	"github.com/cursorbeacon/cursorbeacon/internal/history"
	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
	"github.com/cursorbeacon/cursorbeacon/internal/scheduler"
	"github.com/cursorbeacon/cursorbeacon/internal/settings"
	"github.com/cursorbeacon/cursorbeacon/internal/web"
	"github.com/cursorbeacon/cursorbeacon/pkg/backend"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/integrations/pngfile"
)

// daemonChildEnv marks the detached child started by "start"
const daemonChildEnv = "CURSORBEACON_DAEMON_CHILD"

var (
	locateOnStart bool
	noWeb         bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startDaemon()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dm, err := prepareDaemon()
		if err != nil {
			return err
		}
		return runDaemon(cfg, dm, false)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopDaemon()
	},
}

func init() {
	for _, c := range []*cobra.Command{startCmd, runCmd} {
		c.Flags().BoolVar(&locateOnStart, "locate", false, "play the converge animation once the daemon is up")
		c.Flags().BoolVar(&noWeb, "no-web", false, "do not serve the web API")
	}
	rootCmd.AddCommand(startCmd, runCmd, stopCmd)
}

// prepareDaemon loads configuration and refuses to run a second daemon
func prepareDaemon() (*config.Config, *daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if noWeb {
		cfg.Web.Enabled = false
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return nil, nil, fmt.Errorf("daemon is already running (PID: %d)", pid)
	}
	return cfg, dm, nil
}

func startDaemon() error {
	cfg, dm, err := prepareDaemon()
	if err != nil {
		return err
	}

	if os.Getenv(daemonChildEnv) != "1" {
		return daemonize(cfg)
	}
	return runDaemon(cfg, dm, true)
}

func runDaemon(cfg *config.Config, dm *daemon.Daemon, detached bool) error {
	if detached {
		logFile, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		}
	}
	lg := logger.New("[" + appName + "]")

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		return err
	}
	repo := database.NewRepository(db)

	rec := history.New(repo, history.DefaultQueueSize, logger.New("[history]"))
	defer rec.Close()

	store, err := settings.Open(settings.AppName)
	if err != nil {
		return err
	}

	be, err := backend.New(backend.Options{
		Display:    cfg.Display.Name,
		Background: cfg.SinkBackground(),
		Log:        logger.New("[x11]"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize display backend: %w", err)
	}
	defer be.Close()
	lg.Info("Display backend initialized: %s", be.GetDisplayServer())

	sink, err := openSink(cfg, be, lg)
	if err != nil {
		return err
	}

	svc := app.NewService(cfg, scheduler.New(), app.Desktop{
		Pointer:  be,
		Display:  be,
		Overlays: be,
		Sink:     sink,
		Server:   be.GetDisplayServer(),
	}, store, rec, logger.New("[engine]"))

	var server *web.Server
	if cfg.Web.Enabled {
		hub := web.NewHub(logger.New("[stream]"))
		svc.Subscribe(hub.Publish)
		server = web.NewServer(cfg, web.NewHandler(cfg, svc, repo, store, hub))
		go func() {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				lg.Error("Web server error: %v", err)
			}
		}()
	}

	if err := dm.WritePID(); err != nil {
		return err
	}
	defer dm.RemovePID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGUSR1:
				svc.Locate(models.TriggerSignal)
			case syscall.SIGHUP:
				lg.Info("Reloading settings")
				svc.Reload()
			default:
				lg.Info("Received shutdown signal")
				cancel()
				return
			}
		}
	}()

	if locateOnStart {
		svc.Locate(models.TriggerStart)
	}

	lg.Info("Starting %s daemon...", appName)
	log.Printf("Configuration:\n%s", cfg.String())

	runErr := svc.Start(ctx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Warn("Error shutting down web server: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	lg.Info("Daemon stopped successfully")
	return nil
}

// openSink returns the configured status sink. A session without a system
// tray falls back to the PNG file sink.
func openSink(cfg *config.Config, be desktop.Backend, lg logger.Logger) (desktop.StatusIcon, error) {
	if cfg.Sink.Kind == config.SinkPNG {
		return pngfile.New(cfg.Sink.PNGPath)
	}

	tray, err := be.StatusIcon()
	if err == nil && tray != nil {
		return tray, nil
	}
	lg.Warn("System tray unavailable (%v), writing glyph to %s", err, cfg.Sink.PNGPath)
	return pngfile.New(cfg.Sink.PNGPath)
}

func stopDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Println(warnStyle.Render("Daemon is not running"))
		return nil
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	fmt.Println(successStyle.Render("Daemon stopped successfully"))
	return nil
}

func daemonize(cfg *config.Config) error {
	env := append(os.Environ(), daemonChildEnv+"=1")

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	procAttr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{nil, nil, nil}, // stdin, stdout, stderr to /dev/null
		Sys: &syscall.SysProcAttr{
			Setsid: true, // Create new session
		},
	}

	process, err := os.StartProcess(exe, os.Args, procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Daemon started successfully (PID: %d)", process.Pid)))
	if cfg.Web.Enabled {
		fmt.Println(field("Web API:", "http://"+cfg.WebAddress()))
	}
	fmt.Println(field("Logs:", cfg.Daemon.LogFile))
	return process.Release()
}
