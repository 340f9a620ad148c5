package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/parts-catalog-scraper/internal/events"
	"github.com/maltedev/parts-catalog-scraper/internal/metrics"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/maltedev/parts-catalog-scraper/internal/scraper"
	"github.com/maltedev/parts-catalog-scraper/internal/storage"
)

type Acquirer interface {
	Acquire(ctx context.Context, parts []*models.Part, baseURL, destDir string) ([]models.ImageAsset, error)
}

type Builder interface {
	Build(rows []models.ReportRow, path string) error
}

type SnapshotSaver interface {
	Save(ctx context.Context, snapshot *models.Snapshot) error
}

type EventPublisher interface {
	PublishSnapshot(ctx context.Context, payload events.SnapshotCompleted) (string, error)
}

type Archiver interface {
	Upload(ctx context.Context, runID string, files ...string) ([]string, error)
}

type Options struct {
	StartURL        string
	PageLimit       int
	ImagesDir       string
	ReportPath      string
	MetricsTextfile string
	SinkTimeout     time.Duration
}

// Deps are the collaborators of a run. Crawler, Images and Report are required;
// the rest are skipped when nil. ReleaseBrowser is called as soon as the crawl
// returns so the browser process does not outlive it.
type Deps struct {
	Crawler        scraper.Crawler
	ReleaseBrowser func() error
	Images         Acquirer
	Report         Builder
	Manifest       *storage.ManifestStore
	Repo           SnapshotSaver
	Events         EventPublisher
	Archive        Archiver
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

type Runner struct {
	opts Options
	deps Deps

	logger   *slog.Logger
	newRunID func() string
}

func NewRunner(opts Options, deps Deps) *Runner {
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 30 * time.Second
	}
	if opts.ImagesDir == "" {
		opts.ImagesDir = "images"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		opts:     opts,
		deps:     deps,
		logger:   logger.With("component", "runner"),
		newRunID: func() string { return uuid.New().String() },
	}
}

// Run crawls, downloads images, writes the report and then feeds the optional
// sinks. The returned error is non-nil only when the report could not be
// written; the summary is returned in every case.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	runID := r.newRunID()
	logger := r.logger.With("run_id", runID)

	summary := &Summary{
		RunID:        runID,
		StartURL:     r.opts.StartURL,
		PageLimit:    r.opts.PageLimit,
		ArtifactPath: r.opts.ReportPath,
	}

	logger.Info("run started", "url", r.opts.StartURL, "page_limit", r.opts.PageLimit)

	result := r.crawl(ctx, logger)
	r.releaseBrowser(logger)
	summary.applyCrawl(result)
	r.deps.Metrics.ObserveStage("crawl", result.FinishedAt.Sub(result.StartedAt))

	stageStart := time.Now()
	assets := r.acquire(ctx, logger, result.Parts)
	summary.applyImages(assets)
	r.deps.Metrics.ObserveStage("images", time.Since(stageStart))

	rows := models.ZipRows(result.Parts, assets)

	stageStart = time.Now()
	if err := r.deps.Report.Build(rows, r.opts.ReportPath); err != nil {
		summary.Duration = time.Since(started)
		logger.Error("failed to write report", "path", r.opts.ReportPath, "error", err)
		r.writeMetrics(logger)
		return summary, err
	}
	r.deps.Metrics.ObserveStage("report", time.Since(stageStart))
	r.deps.Metrics.MarkSuccess(time.Now())

	snap := models.NewSnapshot(runID, r.opts.StartURL, r.opts.PageLimit, rows, result.Failures)
	snap.PagesVisited = result.PagesVisited
	snap.Outcome = result.Outcome
	snap.AbortReason = result.Reason
	snap.ArtifactPath = r.opts.ReportPath
	snap.StartedAt = started
	snap.FinishedAt = time.Now()

	r.publish(ctx, logger, snap, summary)
	r.writeMetrics(logger)

	summary.Duration = time.Since(started)
	logger.Info("run finished",
		"outcome", summary.Status(),
		"records", summary.Records,
		"images_acquired", summary.ImagesAcquired,
		"images_failed", summary.ImagesFailed,
		"duration", summary.Duration)

	return summary, nil
}

// crawl never fails; a page that cannot be opened becomes a browser_error abort.
func (r *Runner) crawl(ctx context.Context, logger *slog.Logger) *scraper.CrawlResult {
	started := time.Now()
	result, err := r.deps.Crawler.Crawl(ctx, r.opts.StartURL, r.opts.PageLimit)
	if err == nil {
		return result
	}

	logger.Error("crawl could not start", "error", err)
	reason := scraper.ReasonBrowserError
	if ctx.Err() != nil {
		reason = scraper.ReasonCancelled
	}
	return &scraper.CrawlResult{
		Outcome:    scraper.OutcomeAborted,
		Reason:     reason,
		Err:        err,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

func (r *Runner) releaseBrowser(logger *slog.Logger) {
	if r.deps.ReleaseBrowser == nil {
		return
	}
	if err := r.deps.ReleaseBrowser(); err != nil {
		logger.Warn("failed to close browser", "error", err)
		return
	}
	logger.Debug("browser released")
}

// acquire always returns one asset per part.
func (r *Runner) acquire(ctx context.Context, logger *slog.Logger, parts []*models.Part) []models.ImageAsset {
	if len(parts) == 0 {
		return nil
	}

	assets, err := r.deps.Images.Acquire(ctx, parts, r.opts.StartURL, r.opts.ImagesDir)
	if err == nil && len(assets) == len(parts) {
		return assets
	}
	if err == nil {
		err = fmt.Errorf("acquirer returned %d assets for %d parts", len(assets), len(parts))
	}

	logger.Error("image acquisition failed", "dir", r.opts.ImagesDir, "error", err)
	assets = make([]models.ImageAsset, len(parts))
	for i, p := range parts {
		assets[i] = models.ImageAsset{Index: i, SourceURL: p.ImageURL, Err: err}
	}
	return assets
}

// publish feeds the manifest and the optional sinks. Failures are logged only.
// The sinks run on a context detached from cancellation so an interrupted crawl
// is still recorded.
func (r *Runner) publish(ctx context.Context, logger *slog.Logger, snap *models.Snapshot, summary *Summary) {
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.SinkTimeout)
	defer cancel()

	files := []string{r.opts.ReportPath}
	if r.deps.Manifest != nil {
		if err := r.deps.Manifest.Save(snap); err != nil {
			logger.Warn("failed to write manifest", "path", r.deps.Manifest.Path(), "error", err)
		} else {
			summary.ManifestPath = r.deps.Manifest.Path()
			files = append(files, r.deps.Manifest.Path())
		}
	}

	if r.deps.Archive != nil {
		uris, err := r.deps.Archive.Upload(sinkCtx, snap.RunID, files...)
		if err != nil {
			logger.Warn("failed to archive run", "error", err)
		}
		summary.ArchiveURIs = uris
	}

	if r.deps.Repo != nil {
		if err := r.deps.Repo.Save(sinkCtx, snap); err != nil {
			logger.Warn("failed to store snapshot", "error", err)
		} else {
			logger.Info("snapshot stored", "parts", len(snap.Entries))
		}
	}

	if r.deps.Events != nil {
		archiveURI := ""
		if len(summary.ArchiveURIs) > 0 {
			archiveURI = summary.ArchiveURIs[0]
		}
		if _, err := r.deps.Events.PublishSnapshot(sinkCtx, events.NewSnapshotCompleted(snap, archiveURI)); err != nil {
			logger.Warn("failed to publish snapshot event", "error", err)
		}
	}
}

func (r *Runner) writeMetrics(logger *slog.Logger) {
	if r.opts.MetricsTextfile == "" {
		return
	}
	if err := r.deps.Metrics.WriteTextfile(r.opts.MetricsTextfile); err != nil {
		logger.Warn("failed to write metrics", "error", err)
	}
}
