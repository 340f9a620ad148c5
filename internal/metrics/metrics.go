package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catalog_scraper"

// Metrics holds the collectors of a single run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pagesVisited       prometheus.Counter
	partsExtracted     prometheus.Counter
	extractionFailures *prometheus.CounterVec
	crawls             *prometheus.CounterVec
	images             *prometheus.CounterVec
	imageBytes         prometheus.Counter
	stageDuration      *prometheus.HistogramVec
	lastSuccess        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_visited_total",
			Help:      "Catalog pages loaded and extracted.",
		}),
		partsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parts_extracted_total",
			Help:      "Cards extracted into parts.",
		}),
		extractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Cards dropped because a required field was missing.",
		}, []string{"field"}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "Finished crawls by outcome and abort reason.",
		}, []string{"outcome", "reason"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Image acquisitions by result.",
		}, []string{"result"}),
		imageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_bytes_total",
			Help:      "Bytes of image data written to disk.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each run stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote its artifact.",
		}),
	}

	m.registry.MustRegister(
		m.pagesVisited,
		m.partsExtracted,
		m.extractionFailures,
		m.crawls,
		m.images,
		m.imageBytes,
		m.stageDuration,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PageVisited() {
	if m == nil {
		return
	}
	m.pagesVisited.Inc()
}

func (m *Metrics) PartsExtracted(n int) {
	if m == nil {
		return
	}
	m.partsExtracted.Add(float64(n))
}

func (m *Metrics) ExtractionFailed(field string) {
	if m == nil {
		return
	}
	if field == "" {
		field = "unknown"
	}
	m.extractionFailures.WithLabelValues(field).Inc()
}

func (m *Metrics) CrawlFinished(outcome, reason string) {
	if m == nil {
		return
	}
	m.crawls.WithLabelValues(outcome, reason).Inc()
}

// ImageAcquired records one image slot; result is "ok", "cached" or "failed".
func (m *Metrics) ImageAcquired(result string, bytes int) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.imageBytes.Add(float64(bytes))
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) MarkSuccess(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
