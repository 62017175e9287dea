package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"cloudtop/internal/auth"
	"cloudtop/internal/config"
	"cloudtop/internal/dispatch"
	"cloudtop/internal/httpclient"
	"cloudtop/internal/schema"
	"cloudtop/internal/ui"
)

func main() {
	var (
		project   string
		zone      string
		readOnly  bool
		verbosity int
	)

	pflag.StringVar(&project, "project", "", "Project id (overrides config and env)")
	pflag.StringVar(&zone, "zone", "", "Zone for zonal resources (overrides config and env)")
	pflag.BoolVar(&readOnly, "read-only", false, "Refuse all mutating actions")
	pflag.CountVarP(&verbosity, "verbosity", "v", "Increase log verbosity")
	pflag.Parse()

	// .env is optional; missing file is fine
	_ = godotenv.Load()

	log := newLogger(verbosity)

	settings, err := auth.SettingsFromEnv()
	if err != nil {
		fail(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config load failed", "err", err)
	}

	// precedence: flag, env, persisted config
	if project == "" {
		project = settings.Project
	}
	if project == "" {
		project = cfg.Project
	}
	if zone == "" {
		zone = settings.Zone
	}
	if zone == "" {
		zone = cfg.Zone
	}

	registry, err := schema.LoadEmbedded()
	if err != nil {
		fail(err)
	}

	client := httpclient.New()
	provider := auth.NewProvider(settings, client, log)
	engine := dispatch.NewEngine(client, provider, registry, readOnly, log)

	if project == "" {
		// best effort: credentials file or metadata server may know it
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		project = provider.Project(ctx)
		cancel()
	}

	app := ui.NewApp(registry, engine, cfg, log)
	app.SetProject(project)
	app.SetZone(zone)
	if err := app.Init(); err != nil {
		fail(err)
	}
	if err := app.Run(); err != nil {
		fail(err)
	}
}

// newLogger writes structured logs to a file so the TUI never fights
// over the terminal. CLOUDTOP_DEBUG=1 or -v enables debug level.
func newLogger(verbosity int) *slog.Logger {
	level := slog.LevelInfo
	if verbosity > 0 || os.Getenv("CLOUDTOP_DEBUG") == "1" {
		level = slog.LevelDebug
	}

	var w io.Writer = io.Discard
	path := filepath.Join(os.TempDir(), "cloudtop.log")
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		w = f
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
