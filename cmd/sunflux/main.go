package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/sunflux/internal/api/http"
	"github.com/i474232898/sunflux/internal/config"
	"github.com/i474232898/sunflux/internal/dxdb"
	"github.com/i474232898/sunflux/internal/logging"
	"github.com/i474232898/sunflux/internal/scheduler"
	"github.com/i474232898/sunflux/internal/spaceweather"
)

// Exit codes follow sysexits.h.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 64
	exitDataErr  = 65
	exitConfig   = 78
	syncDeadline = 2 * time.Minute
)

const usage = `usage: sunflux [command] [arguments]

commands:
  serve                 run the HTTP API and refresh feeds periodically (default)
  refresh [feed...]     refresh stale feeds, or force the named ones, then exit
  export <feed> [path]  write a feed's default window (or image) to path
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("sunflux", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitConfig
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	service := buildService(cfg, httpClient)

	cmd, rest := "serve", flags.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "serve":
		return serve(cfg, service)
	case "refresh":
		return refresh(service, rest)
	case "export":
		if len(rest) < 1 || len(rest) > 2 {
			fmt.Fprint(os.Stderr, usage)
			return exitUsage
		}
		path := ""
		if len(rest) == 2 {
			path = rest[1]
		}
		return export(service, rest[0], path)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}
}

func serve(cfg *config.AppConfig, service *spaceweather.Service) int {
	log := logging.Component("main")

	var dx httpapi.DXReader
	if cfg.DXEnabled() {
		db, err := openDX(cfg.DX)
		if err != nil {
			log.Warn("DX database unavailable; DX endpoints disabled", "error", err)
		} else {
			defer db.Close()
			dx = db
		}
	}

	// Scheduler that periodically refreshes the stale feeds.
	sched := scheduler.New(service, cfg.RefreshInterval, syncDeadline)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		return exitFailure
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "sunflux",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "sunflux",
		})
	})

	httpapi.RegisterRoutes(app, service, dx)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("listening", "port", cfg.Port)
	if err := listen(ctx, app, ":"+cfg.Port); err != nil {
		log.Error("fiber server stopped", "error", err)
		return exitFailure
	}
	return exitOK
}

// listen serves until ctx is done, then shuts down gracefully. It returns
// early with the error when the listener cannot start.
func listen(ctx context.Context, app *fiber.App, addr string) error {
	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openDX connects to the DX database and creates its tables when they are
// missing, so an empty sqlite file serves empty results.
func openDX(cfg config.DXConfig) (*dxdb.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dxdb.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		logging.Component("main").Warn("could not create DX tables", "error", err)
	}
	return db, nil
}

// refresh syncs every stale feed, or forces the named ones.
func refresh(service *spaceweather.Service, names []string) int {
	log := logging.Component("main")
	ctx, cancel := context.WithTimeout(context.Background(), syncDeadline)
	defer cancel()

	var err error
	if len(names) == 0 {
		err = service.Sync(ctx)
	} else {
		var errs []error
		for _, name := range names {
			errs = append(errs, service.Refresh(ctx, name))
		}
		err = errors.Join(errs...)
	}
	if err != nil {
		log.Error("refresh failed", "error", err)
		return exitFailure
	}
	return exitOK
}

// export writes a feed's default window as JSON, or an image's bytes, to
// path. It exits with EX_DATAERR when there is nothing to display.
func export(service *spaceweather.Service, name, path string) int {
	log := logging.Component("main").With("feed", name)
	ctx, cancel := context.WithTimeout(context.Background(), syncDeadline)
	defer cancel()

	data, ext, err := exportData(ctx, service, name)
	switch {
	case errors.Is(err, spaceweather.ErrNoData):
		log.Warn("nothing to display")
		return exitDataErr
	case errors.Is(err, spaceweather.ErrUnknownFeed):
		log.Error("unknown feed")
		return exitUsage
	case err != nil:
		log.Error("export failed", "error", err)
		return exitFailure
	}

	if path == "" {
		path = filepath.Join(os.TempDir(), name+ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error("writing export", "path", path, "error", err)
		return exitFailure
	}
	log.Info("export saved", "path", path, "bytes", len(data))
	return exitOK
}

func exportData(ctx context.Context, service *spaceweather.Service, name string) ([]byte, string, error) {
	if service.IsImage(name) {
		data, _, err := service.Image(ctx, name)
		if err != nil {
			return nil, "", err
		}
		return data, imageExt(data), nil
	}

	records, err := service.Records(ctx, name, nil)
	if err != nil {
		return nil, "", err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", name, err)
	}
	return data, ".json", nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/gif":
		return ".gif"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}
