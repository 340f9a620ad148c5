package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/maltedev/parts-catalog-scraper/internal/models"
)

var (
	ErrPageLoadTimeout = errors.New("card container did not appear before the load timeout")
	ErrNoNextControl   = errors.New("no next page control")
)

// Crawler walks a paginated catalog and returns the parts it found.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, pageLimit int) (*CrawlResult, error)
}

type SettleMode string

const (
	SettleFixed         SettleMode = "fixed"
	SettleContentChange SettleMode = "content-change"
)

type Options struct {
	CardSelector string
	NextSelector string
	LoadTimeout  time.Duration
	SettleDelay  time.Duration
	SettleMode   SettleMode
	PollInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		CardSelector: "div.sliderBox",
		NextSelector: ".next",
		LoadTimeout:  30 * time.Second,
		SettleDelay:  3 * time.Second,
		SettleMode:   SettleFixed,
		PollInterval: 250 * time.Millisecond,
	}
}

type State string

const (
	StateLoading    State = "loading"
	StateExtracting State = "extracting"
	StateAdvancing  State = "advancing"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

const (
	OutcomeDone    = "done"
	OutcomeAborted = "aborted"
)

const (
	ReasonPageLoadTimeout = "page_load_timeout"
	ReasonNoNextControl   = "no_next_control"
	ReasonBrowserError    = "browser_error"
	ReasonCancelled       = "cancelled"
)

// CrawlResult is what a crawl hands off: the parts in page-then-card order, the
// dropped cards, and how the crawl ended.
type CrawlResult struct {
	Parts        []*models.Part
	Failures     []models.ExtractionFailure
	PagesVisited int
	Outcome      string
	Reason       string
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (r *CrawlResult) Aborted() bool {
	return r.Outcome == OutcomeAborted
}

// Status is a short label for summaries, e.g. "done" or "aborted (no_next_control)".
func (r *CrawlResult) Status() string {
	if r.Aborted() {
		return r.Outcome + " (" + r.Reason + ")"
	}
	return r.Outcome
}
