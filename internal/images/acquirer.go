package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maltedev/parts-catalog-scraper/internal/metrics"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/maltedev/parts-catalog-scraper/internal/ratelimit"
)

const filePrefix = "partImage_"

var (
	ErrEmptyBody         = errors.New("empty response body")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// AcceptHeader lists the formats the report can embed.
const AcceptHeader = "image/png,image/jpeg,image/gif,image/*;q=0.8"

type Config struct {
	Timeout   time.Duration
	Retries   int
	DelayMin  time.Duration
	DelayMax  time.Duration
	CacheSize int
	UserAgent string
	// Transport replaces the HTTP transport, e.g. with a mock in tests.
	Transport http.RoundTripper
}

func DefaultConfig() Config {
	return Config{
		Timeout:   20 * time.Second,
		Retries:   2,
		CacheSize: 256,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// AcquisitionError marks one image slot that could not be fetched or stored.
type AcquisitionError struct {
	Index      int
	URL        string
	StatusCode int
	Err        error
}

func (e *AcquisitionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("image %d (%s): unexpected status %d", e.Index, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("image %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

type Acquirer struct {
	client  *resty.Client
	cache   *lru.Cache[string, []byte]
	limiter *ratelimit.AdaptiveRateLimiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewAcquirer(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Acquirer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("user-agent", cfg.UserAgent)
	}
	client.SetHeader("accept", AcceptHeader)
	client.SetRetryCount(cfg.Retries)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil {
			return false
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})

	a := &Acquirer{
		client:  client,
		limiter: ratelimit.NewAdaptiveRateLimiter(cfg.DelayMin, cfg.DelayMax),
		logger:  logger.With("component", "image_acquirer"),
		metrics: m,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.CacheSize)
		if err == nil {
			a.cache = cache
		}
	}
	return a
}

// Acquire downloads the image of every part into destDir as partImage_<index><ext>.
// It always returns exactly one asset per part in the same order; a failed slot
// carries an *AcquisitionError instead of a path. The only error returned is a
// failure to create destDir.
func (a *Acquirer) Acquire(ctx context.Context, parts []*models.Part, baseURL, destDir string) ([]models.ImageAsset, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", destDir, err)
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		base = nil
	}

	assets := make([]models.ImageAsset, len(parts))
	failed := 0
	for i, part := range parts {
		assets[i] = a.acquireOne(ctx, i, part.ImageURL, base, destDir)
		if assets[i].Err != nil {
			failed++
			a.logger.Warn("image acquisition failed", "index", i, "part_number", part.PartNumber, "error", assets[i].Err)
		}
	}

	a.logger.Info("images acquired", "total", len(parts), "ok", len(parts)-failed, "failed", failed, "dir", destDir)
	return assets, nil
}

func (a *Acquirer) acquireOne(ctx context.Context, index int, rawURL string, base *url.URL, destDir string) models.ImageAsset {
	asset := models.ImageAsset{Index: index, SourceURL: rawURL}

	resolved, err := resolveURL(base, rawURL)
	if err != nil {
		asset.Err = &AcquisitionError{Index: index, URL: rawURL, Err: err}
		a.metrics.ImageAcquired("failed", 0)
		return asset
	}
	asset.SourceURL = resolved

	data, cached, err := a.fetch(ctx, index, resolved)
	if err != nil {
		asset.Err = err
		a.metrics.ImageAcquired("failed", 0)
		return asset
	}

	ext, ok := fileExtension(data)
	if !ok {
		asset.Err = &AcquisitionError{
			Index: index,
			URL:   resolved,
			Err:   fmt.Errorf("%w: %s", ErrUnsupportedFormat, http.DetectContentType(data)),
		}
		a.metrics.ImageAcquired("failed", 0)
		return asset
	}

	localPath := filepath.Join(destDir, fmt.Sprintf("%s%d%s", filePrefix, index, ext))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		asset.Err = &AcquisitionError{Index: index, URL: resolved, Err: fmt.Errorf("failed to write image: %w", err)}
		a.metrics.ImageAcquired("failed", 0)
		return asset
	}
	asset.LocalPath = localPath

	if cached {
		a.metrics.ImageAcquired("cached", len(data))
	} else {
		a.metrics.ImageAcquired("ok", len(data))
	}
	return asset
}

func (a *Acquirer) fetch(ctx context.Context, index int, u string) ([]byte, bool, error) {
	if a.cache != nil {
		if data, ok := a.cache.Get(u); ok {
			return data, true, nil
		}
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, false, &AcquisitionError{Index: index, URL: u, Err: err}
	}

	resp, err := a.client.R().SetContext(ctx).Get(u)
	if err != nil {
		a.limiter.RecordError()
		return nil, false, &AcquisitionError{Index: index, URL: u, Err: err}
	}
	if !resp.IsSuccess() {
		a.limiter.RecordError()
		return nil, false, &AcquisitionError{Index: index, URL: u, StatusCode: resp.StatusCode()}
	}

	data := resp.Body()
	if len(data) == 0 {
		a.limiter.RecordError()
		return nil, false, &AcquisitionError{Index: index, URL: u, Err: ErrEmptyBody}
	}
	a.limiter.RecordSuccess()

	if a.cache != nil {
		a.cache.Add(u, data)
	}
	return data, false, nil
}

func resolveURL(base *url.URL, raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid image URL: %w", err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("unsupported image URL %q", raw)
	}
	return ref.String(), nil
}

// fileExtension maps the sniffed content type to an extension. Only formats the
// report builder can embed are accepted.
func fileExtension(data []byte) (string, bool) {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpg", true
	case "image/gif":
		return ".gif", true
	}
	return "", false
}
