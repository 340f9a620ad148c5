package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Engine != EnginePlaywright {
		t.Errorf("Expected default engine to be %s, got %s", EnginePlaywright, opts.Engine)
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}
}

func TestOpenRejectsUnknownEngine(t *testing.T) {
	opts := DefaultOptions()
	opts.Engine = "netscape"

	_, err := Open(context.Background(), opts)
	if err == nil {
		t.Fatal("Expected error for unknown engine")
	}
}

func TestTranslateTimeout(t *testing.T) {
	err := translate(fmt.Errorf("waiting for selector: %w", playwright.ErrTimeout))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected playwright timeout to map to ErrTimeout, got %v", err)
	}

	other := errors.New("target closed")
	if got := translate(other); errors.Is(got, ErrTimeout) {
		t.Errorf("Expected non-timeout error to pass through, got %v", got)
	}

	if translate(nil) != nil {
		t.Error("Expected nil to stay nil")
	}
}
