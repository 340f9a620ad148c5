package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultStartURL, cfg.Crawl.StartURL)
	assert.Equal(t, 34, cfg.Crawl.PageLimit)
	assert.Equal(t, "div.sliderBox", cfg.Crawl.CardSelector)
	assert.Equal(t, ".next", cfg.Crawl.NextSelector)
	assert.Equal(t, 30*time.Second, cfg.Crawl.LoadTimeout)
	assert.Equal(t, 3*time.Second, cfg.Crawl.SettleDelay)
	assert.Equal(t, "fixed", cfg.Crawl.SettleMode)
	assert.Equal(t, "playwright", cfg.Browser.Engine)
	assert.Equal(t, "images", cfg.Images.Dir)
	assert.Equal(t, "scraped_parts_with_images_playwright.xlsx", cfg.Report.Path)
	assert.Equal(t, 100, cfg.Report.ThumbnailPx)
	assert.Empty(t, cfg.Database.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CRAWL_START_URL", "https://parts.example.com/list")
	t.Setenv("CRAWL_PAGE_LIMIT", "5")
	t.Setenv("CRAWL_SETTLE_DELAY", "1500ms")
	t.Setenv("CRAWL_SETTLE_MODE", "content-change")
	t.Setenv("BROWSER_ENGINE", "chromedp")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("REPORT_ROW_HEIGHT", "80.5")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IMAGES_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://parts.example.com/list", cfg.Crawl.StartURL)
	assert.Equal(t, 5, cfg.Crawl.PageLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawl.SettleDelay)
	assert.Equal(t, "content-change", cfg.Crawl.SettleMode)
	assert.Equal(t, "chromedp", cfg.Browser.Engine)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 80.5, cfg.Report.RowHeight)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 2, cfg.Images.Retries, "unparseable values fall back to the default")
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative start url", mutate: func(c *Config) { c.Crawl.StartURL = "/genuine-parts" }},
		{name: "zero page limit", mutate: func(c *Config) { c.Crawl.PageLimit = 0 }},
		{name: "empty card selector", mutate: func(c *Config) { c.Crawl.CardSelector = "" }},
		{name: "zero load timeout", mutate: func(c *Config) { c.Crawl.LoadTimeout = 0 }},
		{name: "negative settle delay", mutate: func(c *Config) { c.Crawl.SettleDelay = -time.Second }},
		{name: "unknown settle mode", mutate: func(c *Config) { c.Crawl.SettleMode = "event" }},
		{name: "zero poll interval", mutate: func(c *Config) {
			c.Crawl.SettleMode = "content-change"
			c.Crawl.SettlePoll = 0
		}},
		{name: "unknown engine", mutate: func(c *Config) { c.Browser.Engine = "selenium" }},
		{name: "delay min above max", mutate: func(c *Config) { c.Images.DelayMin = 2 * time.Second }},
		{name: "negative retries", mutate: func(c *Config) { c.Images.Retries = -1 }},
		{name: "zero thumbnail", mutate: func(c *Config) { c.Report.ThumbnailPx = 0 }},
		{name: "empty report path", mutate: func(c *Config) { c.Report.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
