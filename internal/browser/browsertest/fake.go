// Package browsertest provides a scripted in-memory browser for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maltedev/parts-catalog-scraper/internal/browser"
)

// Page serves a fixed list of rendered HTML documents. Clicking any selector
// advances to the next document.
type Page struct {
	mu sync.Mutex

	Pages []string
	// HasNext reports whether the next control exists on page index i (0-based).
	// When nil the control exists on every page but the last.
	HasNext func(i int) bool
	// WaitErr makes WaitForSelector fail on the given 0-based page index.
	WaitErr map[int]error
	GotoErr error
	// StaleReads is the number of Content calls after a click that still return
	// the previous page.
	StaleReads int

	URL          string
	Index        int
	Clicks       int
	ContentCalls int
	Closed       bool

	stale int
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	p.URL = url
	p.Index = 0
	return p.GotoErr
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := p.WaitErr[p.Index]; ok {
		return err
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.HasNext != nil {
		return p.HasNext(p.Index), nil
	}
	return p.Index < len(p.Pages)-1, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Index+1 >= len(p.Pages) {
		return errors.New("browsertest: no page after the last one")
	}
	p.Index++
	p.Clicks++
	p.stale = p.StaleReads
	return nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ContentCalls++
	if p.Index >= len(p.Pages) {
		return "", fmt.Errorf("browsertest: no page %d", p.Index)
	}
	if p.stale > 0 && p.Index > 0 {
		p.stale--
		return p.Pages[p.Index-1], nil
	}
	return p.Pages[p.Index], nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Closed = true
	return nil
}

// Engine hands out its single Page.
type Engine struct {
	Page       *Page
	NewPageErr error
	Closed     bool
}

var _ browser.Engine = (*Engine)(nil)

func (e *Engine) NewPage(ctx context.Context) (browser.Page, error) {
	if e.NewPageErr != nil {
		return nil, e.NewPageErr
	}
	return e.Page, nil
}

func (e *Engine) Close() error {
	e.Closed = true
	return nil
}

// Card renders one catalog card in the listing's markup.
func Card(number, name, price, image string) string {
	return fmt.Sprintf(`<div class="sliderBox"><img src="%s"><h3>%s</h3><p>Part No: <strong>%s</strong></p><div class="price">%s</div></div>`,
		image, name, number, price)
}

// Listing wraps cards in a page with a next control.
func Listing(cards ...string) string {
	html := `<html><body><div class="listing">`
	for _, c := range cards {
		html += c
	}
	return html + `</div><a class="next">Next</a></body></html>`
}
