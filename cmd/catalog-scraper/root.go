package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/maltedev/parts-catalog-scraper/internal/archive"
	"github.com/maltedev/parts-catalog-scraper/internal/browser"
	"github.com/maltedev/parts-catalog-scraper/internal/config"
	"github.com/maltedev/parts-catalog-scraper/internal/database"
	"github.com/maltedev/parts-catalog-scraper/internal/events"
	"github.com/maltedev/parts-catalog-scraper/internal/images"
	"github.com/maltedev/parts-catalog-scraper/internal/metrics"
	"github.com/maltedev/parts-catalog-scraper/internal/report"
	"github.com/maltedev/parts-catalog-scraper/internal/scraper"
	"github.com/maltedev/parts-catalog-scraper/internal/snapshot"
	"github.com/maltedev/parts-catalog-scraper/internal/storage"
	"github.com/maltedev/parts-catalog-scraper/pkg/logger"
	"github.com/spf13/cobra"
)

type flags struct {
	url      string
	pages    int
	headless bool
	output   string
	engine   string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "catalog-scraper",
		Short: "Scrapes a paginated parts catalog into an xlsx report with embedded images.",
		Long: `catalog-scraper walks a fixed number of pages of a client-rendered parts
catalog, downloads each part's image and writes one spreadsheet row per part.
Everything not set by flags is read from the environment (see internal/config).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&f.url, "url", config.DefaultStartURL, "catalog listing URL to start from")
	cmd.Flags().IntVar(&f.pages, "pages", 34, "number of pages to scrape")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVar(&f.output, "output", "", "path of the xlsx report")
	cmd.Flags().StringVar(&f.engine, "engine", "", "browser engine: playwright or chromedp")

	return cmd
}

// applyFlags overrides the environment with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	fs := cmd.Flags()
	if fs.Changed("url") {
		cfg.Crawl.StartURL = f.url
	}
	if fs.Changed("pages") {
		cfg.Crawl.PageLimit = f.pages
	}
	if fs.Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if fs.Changed("output") {
		cfg.Report.Path = f.output
	}
	if fs.Changed("engine") {
		cfg.Browser.Engine = f.engine
	}
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting catalog scraper",
		"url", cfg.Crawl.StartURL,
		"pages", cfg.Crawl.PageLimit,
		"engine", cfg.Browser.Engine)

	m := metrics.New()

	engine, err := browser.Open(ctx, &browser.Options{
		Engine:         cfg.Browser.Engine,
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	// The runner closes the browser once the crawl is over; the deferred call
	// only covers early returns.
	var closeOnce sync.Once
	var closeErr error
	closeEngine := func() error {
		closeOnce.Do(func() { closeErr = engine.Close() })
		return closeErr
	}
	defer func() {
		if err := closeEngine(); err != nil {
			log.Warn("Failed to close browser", "error", err)
		}
	}()

	crawler := scraper.NewCatalogCrawler(engine, scraper.Options{
		CardSelector: cfg.Crawl.CardSelector,
		NextSelector: cfg.Crawl.NextSelector,
		LoadTimeout:  cfg.Crawl.LoadTimeout,
		SettleDelay:  cfg.Crawl.SettleDelay,
		SettleMode:   scraper.SettleMode(cfg.Crawl.SettleMode),
		PollInterval: cfg.Crawl.SettlePoll,
	}, log, m)

	acquirer := images.NewAcquirer(images.Config{
		Timeout:   cfg.Images.Timeout,
		Retries:   cfg.Images.Retries,
		DelayMin:  cfg.Images.DelayMin,
		DelayMax:  cfg.Images.DelayMax,
		CacheSize: cfg.Images.CacheSize,
		UserAgent: cfg.Browser.UserAgent,
	}, log, m)

	builder := report.NewBuilder(report.Options{
		ThumbnailPx:      cfg.Report.ThumbnailPx,
		RowHeight:        cfg.Report.RowHeight,
		ImageColumnWidth: cfg.Report.ColumnWidth,
		Logger:           log,
	})

	deps := snapshot.Deps{
		Crawler:        crawler,
		ReleaseBrowser: closeEngine,
		Images:         acquirer,
		Report:         builder,
		Metrics:        m,
		Logger:         log,
	}
	if cfg.Report.ManifestPath != "" {
		deps.Manifest = storage.NewManifestStore(cfg.Report.ManifestPath)
	}

	closeSinks := openSinks(ctx, cfg, log, &deps)
	defer closeSinks()

	runner := snapshot.NewRunner(snapshot.Options{
		StartURL:        cfg.Crawl.StartURL,
		PageLimit:       cfg.Crawl.PageLimit,
		ImagesDir:       cfg.Images.Dir,
		ReportPath:      cfg.Report.Path,
		MetricsTextfile: cfg.Metrics.Textfile,
	}, deps)

	summary, err := runner.Run(ctx)
	if summary != nil {
		if perr := summary.Print(cmd.OutOrStdout()); perr != nil {
			log.Warn("Failed to print summary", "error", perr)
		}
	}
	return err
}

// openSinks connects whichever optional sinks are configured. A sink that
// cannot be reached is left out of the run.
func openSinks(ctx context.Context, cfg *config.Config, log *slog.Logger, deps *snapshot.Deps) func() {
	var closers []func()

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, database.Config{URL: cfg.Database.URL})
		if err != nil {
			log.Warn("Database unavailable, snapshot will not be stored", "error", err)
		} else if err := db.Migrate(ctx); err != nil {
			log.Warn("Failed to migrate database, snapshot will not be stored", "error", err)
			db.Close()
		} else {
			deps.Repo = database.NewSnapshotRepository(db)
			closers = append(closers, db.Close)
		}
	}

	if cfg.Redis.Addr != "" {
		publisher, err := events.NewRedisPublisher(ctx, events.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
		}, log)
		if err != nil {
			log.Warn("Redis unavailable, no completion event will be published", "error", err)
		} else {
			deps.Events = publisher
			closers = append(closers, func() { _ = publisher.Close() })
		}
	}

	if cfg.S3.Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, archive.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Prefix:    cfg.S3.Prefix,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, log)
		if err != nil {
			log.Warn("S3 unavailable, run will not be archived", "error", err)
		} else {
			deps.Archive = archiver
		}
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func execute(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
