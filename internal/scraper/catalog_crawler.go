package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/parts-catalog-scraper/internal/browser"
	"github.com/maltedev/parts-catalog-scraper/internal/metrics"
	"github.com/maltedev/parts-catalog-scraper/internal/parser"
)

type CatalogCrawler struct {
	engine  browser.Engine
	parser  parser.Parser
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCatalogCrawler(engine browser.Engine, opts Options, logger *slog.Logger, m *metrics.Metrics) *CatalogCrawler {
	defaults := DefaultOptions()
	if opts.CardSelector == "" {
		opts.CardSelector = defaults.CardSelector
	}
	if opts.NextSelector == "" {
		opts.NextSelector = defaults.NextSelector
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaults.LoadTimeout
	}
	if opts.SettleMode == "" {
		opts.SettleMode = defaults.SettleMode
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CatalogCrawler{
		engine:  engine,
		parser:  parser.NewCatalogParser(opts.CardSelector),
		opts:    opts,
		logger:  logger.With("component", "catalog_crawler"),
		metrics: m,
	}
}

// crawl is the mutable state of one Crawl call.
type crawl struct {
	page        browser.Page
	startURL    string
	pageLimit   int
	current     int
	fingerprint string
	result      *CrawlResult
}

// Crawl drives one page through up to pageLimit listing pages. It only returns an
// error when no page could be opened; every other ending is reported through the
// result's Outcome and Reason together with the parts gathered so far.
func (c *CatalogCrawler) Crawl(ctx context.Context, startURL string, pageLimit int) (*CrawlResult, error) {
	if pageLimit < 1 {
		return nil, fmt.Errorf("page limit must be at least 1, got %d", pageLimit)
	}

	page, err := c.engine.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Warn("failed to close page", "error", err)
		}
	}()

	cr := &crawl{
		page:      page,
		startURL:  startURL,
		pageLimit: pageLimit,
		current:   1,
		result:    &CrawlResult{StartedAt: time.Now()},
	}

	c.logger.Info("starting catalog crawl", "url", startURL, "page_limit", pageLimit)

	state := StateLoading
	for state != StateDone && state != StateAborted {
		if err := ctx.Err(); err != nil {
			state = c.abort(cr, ReasonCancelled, err)
			break
		}

		switch state {
		case StateLoading:
			state = c.load(ctx, cr)
		case StateExtracting:
			state = c.extract(ctx, cr)
		case StateAdvancing:
			state = c.advance(ctx, cr)
		}
	}

	result := cr.result
	result.FinishedAt = time.Now()
	if state == StateDone {
		result.Outcome = OutcomeDone
	}
	c.metrics.CrawlFinished(result.Outcome, result.Reason)

	c.logger.Info("catalog crawl finished",
		"outcome", result.Outcome,
		"reason", result.Reason,
		"pages", result.PagesVisited,
		"parts", len(result.Parts),
		"failures", len(result.Failures),
		"duration", result.FinishedAt.Sub(result.StartedAt))

	return result, nil
}

func (c *CatalogCrawler) load(ctx context.Context, cr *crawl) State {
	if cr.current == 1 {
		if err := cr.page.Goto(ctx, cr.startURL); err != nil {
			return c.fail(ctx, cr, fmt.Errorf("failed to navigate to %s: %w", cr.startURL, err), true)
		}
	}

	if err := cr.page.WaitForSelector(ctx, c.opts.CardSelector, c.opts.LoadTimeout); err != nil {
		return c.fail(ctx, cr, fmt.Errorf("failed waiting for cards on page %d: %w", cr.current, err), true)
	}
	return StateExtracting
}

func (c *CatalogCrawler) extract(ctx context.Context, cr *crawl) State {
	html, err := cr.page.Content(ctx)
	if err != nil {
		return c.fail(ctx, cr, fmt.Errorf("failed to read content of page %d: %w", cr.current, err), false)
	}

	parts, failures, err := c.parser.ParsePage(html, cr.current)
	if err != nil {
		return c.fail(ctx, cr, fmt.Errorf("failed to parse page %d: %w", cr.current, err), false)
	}

	for _, f := range failures {
		c.logger.Warn("skipping card", "page", f.Page, "card", f.Card, "field", f.Field, "error", f.Err)
		c.metrics.ExtractionFailed(f.Field)
	}

	cr.result.Parts = append(cr.result.Parts, parts...)
	cr.result.Failures = append(cr.result.Failures, failures...)
	cr.result.PagesVisited++
	c.metrics.PageVisited()
	c.metrics.PartsExtracted(len(parts))

	if c.opts.SettleMode == SettleContentChange {
		if fp, err := parser.CardsFingerprint(html, c.opts.CardSelector); err == nil {
			cr.fingerprint = fp
		}
	}

	c.logger.Info("page extracted", "page", cr.current, "parts", len(parts), "skipped", len(failures))
	return StateAdvancing
}

func (c *CatalogCrawler) advance(ctx context.Context, cr *crawl) State {
	if cr.current >= cr.pageLimit {
		return StateDone
	}

	found, err := cr.page.Exists(ctx, c.opts.NextSelector)
	if err != nil {
		return c.fail(ctx, cr, fmt.Errorf("failed to look up next control: %w", err), false)
	}
	if !found {
		return c.abort(cr, ReasonNoNextControl, fmt.Errorf("%w after page %d of %d", ErrNoNextControl, cr.current, cr.pageLimit))
	}

	if err := cr.page.Click(ctx, c.opts.NextSelector); err != nil {
		return c.fail(ctx, cr, fmt.Errorf("failed to click next control on page %d: %w", cr.current, err), false)
	}

	if err := c.settle(ctx, cr); err != nil {
		return c.fail(ctx, cr, fmt.Errorf("failed waiting for page %d to render: %w", cr.current+1, err), false)
	}

	cr.current++
	return StateLoading
}

// settle waits for the next page to render after a click. In content-change mode
// the card fingerprint is polled until it differs from the previous page, bounded
// by the settle delay; otherwise the full delay is slept.
func (c *CatalogCrawler) settle(ctx context.Context, cr *crawl) error {
	if c.opts.SettleMode != SettleContentChange || cr.fingerprint == "" {
		return sleep(ctx, c.opts.SettleDelay)
	}

	deadline := time.Now().Add(c.opts.SettleDelay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.logger.Warn("cards unchanged after settle delay, next page may repeat the previous one",
				"page", cr.current+1, "settle_delay", c.opts.SettleDelay)
			return nil
		}
		if err := sleep(ctx, min(c.opts.PollInterval, remaining)); err != nil {
			return err
		}

		html, err := cr.page.Content(ctx)
		if err != nil {
			return err
		}
		fp, err := parser.CardsFingerprint(html, c.opts.CardSelector)
		if err != nil {
			return err
		}
		if fp != cr.fingerprint {
			return nil
		}
	}
}

// fail maps a browser error onto an abort reason. Timeouts only count as page load
// timeouts while loading.
func (c *CatalogCrawler) fail(ctx context.Context, cr *crawl, err error, loading bool) State {
	switch {
	case ctx.Err() != nil:
		return c.abort(cr, ReasonCancelled, ctx.Err())
	case loading && errors.Is(err, browser.ErrTimeout):
		return c.abort(cr, ReasonPageLoadTimeout, fmt.Errorf("%w: %w", ErrPageLoadTimeout, err))
	default:
		return c.abort(cr, ReasonBrowserError, err)
	}
}

func (c *CatalogCrawler) abort(cr *crawl, reason string, err error) State {
	cr.result.Outcome = OutcomeAborted
	cr.result.Reason = reason
	cr.result.Err = err

	if reason == ReasonNoNextControl || reason == ReasonCancelled {
		c.logger.Warn("crawl ended early", "reason", reason, "page", cr.current, "error", err)
	} else {
		c.logger.Error("crawl aborted", "reason", reason, "page", cr.current, "error", err)
	}
	return StateAborted
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
