package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mverdon/formatrack/internal/analysis"
	"github.com/mverdon/formatrack/internal/config"
	"github.com/mverdon/formatrack/internal/database"
	"github.com/mverdon/formatrack/internal/formatter"
	"github.com/mverdon/formatrack/internal/fusion"
	"github.com/mverdon/formatrack/internal/geocode"
	"github.com/mverdon/formatrack/internal/llm"
	"github.com/mverdon/formatrack/internal/mail"
	"github.com/mverdon/formatrack/internal/pipeline"
)

const usage = `usage: formatrack <command> [flags]

commands:
  ingest            fetch new emails from the configured mailbox
  analyze           classify and extract unanalyzed emails
  fuse [-geocode]   merge analyzed emails into formation records
  run               ingest + analyze + fuse with geocoding
  stats             show store and cache counters
  list              print all formation records
  cache <invalidate|clear|count>
  geocache <clear-failed|clear|stats>
`

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	command := os.Args[1]

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	app := &app{cfg: cfg, db: db, logger: logger}
	if err := app.dispatch(ctx, command, os.Args[2:]); err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	db     *database.DB
	logger *slog.Logger
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "ingest":
		_, err := a.ingest(ctx)
		return err
	case "analyze":
		_, err := a.analyze(ctx)
		return err
	case "fuse":
		fs := flag.NewFlagSet("fuse", flag.ExitOnError)
		withGeocode := fs.Bool("geocode", false, "geocode new and changed formations")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return a.fuse(ctx, *withGeocode)
	case "run":
		if a.cfg.IMAPConfigured() {
			if _, err := a.ingest(ctx); err != nil {
				return err
			}
		}
		if _, err := a.analyze(ctx); err != nil {
			return err
		}
		return a.fuse(ctx, true)
	case "stats":
		return a.stats(ctx)
	case "list":
		return a.list(ctx)
	case "cache":
		return a.cacheCmd(ctx, args)
	case "geocache":
		return a.geocacheCmd(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) ingest(ctx context.Context) (*mail.FetchStats, error) {
	if !a.cfg.IMAPConfigured() {
		return nil, fmt.Errorf("IMAP_EMAIL, IMAP_PASSWORD and IMAP_SERVER must be set")
	}
	fetcher := mail.NewFetcher(mail.Config{
		Email:       a.cfg.IMAPEmail,
		Password:    a.cfg.IMAPPassword,
		Server:      a.cfg.IMAPServer,
		DialTimeout: a.cfg.IMAPDialTimeout,
	}, a.db, a.logger)

	stats, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("ingest done", "fetched", stats.Fetched, "stored", stats.Stored, "skipped", stats.Skipped)
	return stats, nil
}

func (a *app) analyze(ctx context.Context) (*analysis.AnalyzeStats, error) {
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: a.cfg.LLMBaseURL,
		APIKey:  a.cfg.LLMAPIKey,
		Model:   a.cfg.LLMModel,
	})
	if !client.IsConfigured() {
		return nil, fmt.Errorf("LLM_API_KEY must be set")
	}
	cache := analysis.NewCache(a.db, client.ModelVersion())
	analyzer := analysis.NewAnalyzer(a.db, cache, client, a.logger)

	stats, err := analyzer.Run(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("analysis done",
		"total", stats.Total, "analyzed", stats.Analyzed,
		"cached", stats.Cached, "failed", stats.Failed)
	return stats, nil
}

func (a *app) fuse(ctx context.Context, withGeocode bool) error {
	cache := analysis.NewCache(a.db, a.modelVersion())

	var geocoder pipeline.Geocoder
	if withGeocode {
		provider, err := a.provider()
		if err != nil {
			return err
		}
		geocoder = geocode.NewCache(a.db, provider, a.logger)
	}

	runner := pipeline.New(a.db, cache, geocoder, fusion.VirtualLocation, a.logger, func(p pipeline.Progress) {
		a.logger.Info("progress", "state", p.State, "message", p.Message)
	})

	progress, err := runner.Run(ctx, withGeocode)
	if err != nil {
		return err
	}
	a.logger.Info("fusion done",
		"created", progress.Stats.Created,
		"updated", progress.Stats.Updated,
		"ignored", progress.Stats.Ignored,
		"fused", progress.Stats.Fused,
		"cancellations", progress.Stats.Cancellations,
		"geocoded", progress.Geocoded)
	return nil
}

func (a *app) stats(ctx context.Context) error {
	total, analyzed, err := a.db.CountMessages(ctx)
	if err != nil {
		return err
	}
	formations, cancelled, err := a.db.CountFormations(ctx)
	if err != nil {
		return err
	}
	cached, err := a.db.CountCache(ctx)
	if err != nil {
		return err
	}
	geo, err := a.db.GeocacheStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("messages:    %d (%d analyzed)\n", total, analyzed)
	fmt.Printf("formations:  %d (%d cancelled)\n", formations, cancelled)
	fmt.Printf("analyses:    %d cached\n", cached)
	fmt.Printf("geocache:    %d entries (%d resolved, %d failed)\n", geo.Total, geo.WithCoords, geo.WithoutCoords)
	return nil
}

func (a *app) list(ctx context.Context) error {
	formations, err := a.db.ListFormations(ctx)
	if err != nil {
		return err
	}
	summary := formatter.NewSummary()
	for _, f := range formations {
		fmt.Println(summary.FormatFormation(f))
	}
	fmt.Printf("%d formations\n", len(formations))
	return nil
}

func (a *app) cacheCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: formatrack cache <invalidate|clear|count>")
	}
	cache := analysis.NewCache(a.db, a.modelVersion())
	switch args[0] {
	case "invalidate":
		n, err := cache.InvalidateStale(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("stale entries removed", "count", n, "modelVersion", cache.ModelVersion())
	case "clear":
		if err := cache.Clear(ctx); err != nil {
			return err
		}
		a.logger.Info("analysis cache cleared")
	case "count":
		n, err := cache.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)
	default:
		return fmt.Errorf("unknown cache subcommand %q", args[0])
	}
	return nil
}

func (a *app) geocacheCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: formatrack geocache <clear-failed|clear|stats>")
	}
	cache := geocode.NewCache(a.db, nil, a.logger)
	switch args[0] {
	case "clear-failed":
		n, err := cache.ClearFailed(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("failed entries removed", "count", n)
	case "clear":
		if err := cache.ClearAll(ctx); err != nil {
			return err
		}
		a.logger.Info("geocache cleared")
	case "stats":
		stats, err := cache.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d entries (%d resolved, %d failed)\n", stats.Total, stats.WithCoords, stats.WithoutCoords)
	default:
		return fmt.Errorf("unknown geocache subcommand %q", args[0])
	}
	return nil
}

// modelVersion mirrors what the analyzer would stamp on cache entries,
// without requiring an API key for read-only commands.
func (a *app) modelVersion() string {
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey: a.cfg.LLMAPIKey,
		Model:  a.cfg.LLMModel,
	}).ModelVersion()
}

func (a *app) provider() (geocode.Provider, error) {
	switch a.cfg.GeocodeProvider {
	case "nominatim":
		return geocode.NewNominatim("", a.cfg.NominatimUserAgent), nil
	case "google":
		return geocode.NewGoogleMaps("", a.cfg.GoogleMapsAPIKey), nil
	case "mapbox":
		return geocode.NewMapbox("", a.cfg.MapboxAccessToken), nil
	}
	return nil, fmt.Errorf("unknown geocoding provider %q", a.cfg.GeocodeProvider)
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
