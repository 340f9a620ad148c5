package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const DefaultStartURL = "https://www.marutisuzuki.com/genuine-parts/alto-k10-from-aug-2022/2022-till-present/lxi-mt"

type Config struct {
	Crawl    CrawlConfig
	Browser  BrowserConfig
	Images   ImagesConfig
	Report   ReportConfig
	Database DatabaseConfig
	Redis    RedisConfig
	S3       S3Config
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

type CrawlConfig struct {
	StartURL     string
	PageLimit    int
	CardSelector string
	NextSelector string
	LoadTimeout  time.Duration
	SettleDelay  time.Duration
	SettleMode   string
	SettlePoll   time.Duration
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

type ImagesConfig struct {
	Dir       string
	Timeout   time.Duration
	Retries   int
	DelayMin  time.Duration
	DelayMax  time.Duration
	CacheSize int
}

type ReportConfig struct {
	Path         string
	ThumbnailPx  int
	RowHeight    float64
	ColumnWidth  float64
	ManifestPath string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type S3Config struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type MetricsConfig struct {
	Textfile string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Crawl: CrawlConfig{
			StartURL:     getEnvOrDefault("CRAWL_START_URL", DefaultStartURL),
			PageLimit:    getIntOrDefault("CRAWL_PAGE_LIMIT", 34),
			CardSelector: getEnvOrDefault("CRAWL_CARD_SELECTOR", "div.sliderBox"),
			NextSelector: getEnvOrDefault("CRAWL_NEXT_SELECTOR", ".next"),
			LoadTimeout:  getDurationOrDefault("CRAWL_LOAD_TIMEOUT", 30*time.Second),
			SettleDelay:  getDurationOrDefault("CRAWL_SETTLE_DELAY", 3*time.Second),
			SettleMode:   getEnvOrDefault("CRAWL_SETTLE_MODE", "fixed"),
			SettlePoll:   getDurationOrDefault("CRAWL_SETTLE_POLL", 250*time.Millisecond),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", "playwright"),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
		},
		Images: ImagesConfig{
			Dir:       getEnvOrDefault("IMAGES_DIR", "images"),
			Timeout:   getDurationOrDefault("IMAGES_TIMEOUT", 20*time.Second),
			Retries:   getIntOrDefault("IMAGES_RETRIES", 2),
			DelayMin:  getDurationOrDefault("IMAGES_DELAY_MIN", 0),
			DelayMax:  getDurationOrDefault("IMAGES_DELAY_MAX", 0),
			CacheSize: getIntOrDefault("IMAGES_CACHE_SIZE", 256),
		},
		Report: ReportConfig{
			Path:         getEnvOrDefault("REPORT_PATH", "scraped_parts_with_images_playwright.xlsx"),
			ThumbnailPx:  getIntOrDefault("REPORT_THUMBNAIL_PX", 100),
			RowHeight:    getFloatOrDefault("REPORT_ROW_HEIGHT", 100),
			ColumnWidth:  getFloatOrDefault("REPORT_COLUMN_WIDTH", 30),
			ManifestPath: getEnvOrDefault("REPORT_MANIFEST_PATH", "snapshot.json"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_snapshots"),
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnvOrDefault("S3_REGION", "us-east-1"),
			Prefix:    getEnvOrDefault("S3_PREFIX", "catalog-snapshots"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		Metrics: MetricsConfig{
			Textfile: os.Getenv("METRICS_TEXTFILE"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Crawl.StartURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CRAWL_START_URL must be an absolute URL, got %q", c.Crawl.StartURL)
	}

	if c.Crawl.PageLimit < 1 {
		return fmt.Errorf("CRAWL_PAGE_LIMIT must be at least 1")
	}

	if c.Crawl.CardSelector == "" || c.Crawl.NextSelector == "" {
		return fmt.Errorf("CRAWL_CARD_SELECTOR and CRAWL_NEXT_SELECTOR must not be empty")
	}

	if c.Crawl.LoadTimeout <= 0 || c.Browser.Timeout <= 0 || c.Images.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.Crawl.SettleDelay < 0 {
		return fmt.Errorf("CRAWL_SETTLE_DELAY cannot be negative")
	}

	switch c.Crawl.SettleMode {
	case "fixed", "content-change":
	default:
		return fmt.Errorf("CRAWL_SETTLE_MODE must be fixed or content-change, got %q", c.Crawl.SettleMode)
	}

	if c.Crawl.SettleMode == "content-change" && c.Crawl.SettlePoll <= 0 {
		return fmt.Errorf("CRAWL_SETTLE_POLL must be positive")
	}

	switch c.Browser.Engine {
	case "playwright", "chromedp":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be playwright or chromedp, got %q", c.Browser.Engine)
	}

	if c.Images.DelayMin > c.Images.DelayMax {
		return fmt.Errorf("IMAGES_DELAY_MIN cannot be greater than IMAGES_DELAY_MAX")
	}

	if c.Images.Retries < 0 {
		return fmt.Errorf("IMAGES_RETRIES cannot be negative")
	}

	if c.Report.ThumbnailPx <= 0 {
		return fmt.Errorf("REPORT_THUMBNAIL_PX must be positive")
	}

	if c.Report.Path == "" {
		return fmt.Errorf("REPORT_PATH must not be empty")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
