package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ChromeBrowser drives Chrome over the DevTools protocol.
type ChromeBrowser struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	timeout       time.Duration
	logger        *slog.Logger
}

func NewChrome(ctx context.Context, opts *Options) (*ChromeBrowser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	// The browser outlives individual calls, so it is not bound to ctx.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	startCtx, cancelStart := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelStart()
	stop := context.AfterFunc(ctx, cancelStart)
	defer stop()

	if err := chromedp.Run(startCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	return &ChromeBrowser{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		timeout:       opts.Timeout,
		logger:        slog.Default().With("component", "browser", "engine", EngineChromedp),
	}, nil
}

func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel, timeout: b.timeout}, nil
}

func (b *ChromeBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	b.logger.Debug("browser closed")
	return nil
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	return p.run(ctx, p.timeout, chromedp.Navigate(url))
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, p.timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, p.timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
