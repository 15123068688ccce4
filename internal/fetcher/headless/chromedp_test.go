package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/bolagsradar/listings-scraper/internal/scraper"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	renderer, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cap(renderer.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(renderer.limiter))
	}
}

func TestChromedpNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	renderer := &ChromedpRenderer{}
	if got := renderer.navTimeout(); got != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	renderer.cfg.NavigationTimeout = time.Second
	if got := renderer.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestAcquireSlotHonorsCancellation(t *testing.T) {
	t.Parallel()

	limiter := make(chan struct{}, 1)
	limiter <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := acquireSlot(ctx, limiter); err == nil {
		t.Fatal("expected error when no slot frees up")
	}

	releaseSlot(limiter)
	if err := acquireSlot(context.Background(), limiter); err != nil {
		t.Fatalf("unexpected error after release: %v", err)
	}
}

func TestCloneHeaderAndNetworkHeaders(t *testing.T) {
	t.Parallel()

	src := http.Header{"X-Test": {"a", "b"}}
	cloned := cloneHeader(src)
	cloned.Add("X-Test", "c")
	if len(src["X-Test"]) != 2 {
		t.Fatalf("source header mutated: %+v", src)
	}

	netHeaders := toNetworkHeaders(src)
	switch v := netHeaders["X-Test"].(type) {
	case []string:
		if len(v) != 2 {
			t.Fatalf("expected two entries, got %v", v)
		}
	default:
		t.Fatalf("expected []string, got %T", v)
	}
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  204,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	if status != 204 || headers.Get("X-Request-ID") != "abc" || url != "https://example.com/rendered" {
		t.Fatalf("unexpected snapshot values: status=%d headers=%v url=%s", status, headers, url)
	}

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	if status != http.StatusOK || url != "https://final" {
		t.Fatalf("expected fallback values, got status=%d url=%s", status, url)
	}
}

func TestNewPlaywrightLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewPlaywright(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	renderer, err := NewPlaywright(Config{MaxParallel: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cap(renderer.limiter) != 3 {
		t.Fatalf("expected limiter capacity 3, got %d", cap(renderer.limiter))
	}
	if renderer.cfg.NavigationTimeout != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", renderer.cfg.NavigationTimeout)
	}
}

func TestPlaywrightCloseWithoutStart(t *testing.T) {
	t.Parallel()

	renderer, err := NewPlaywright(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := renderer.Close(context.Background()); err != nil {
		t.Fatalf("close before first render: %v", err)
	}
}

func TestFlattenHeaders(t *testing.T) {
	t.Parallel()

	if got := flattenHeaders(nil); got != nil {
		t.Fatalf("expected nil map for empty headers, got %v", got)
	}
	got := flattenHeaders(http.Header{
		"Accept":          {"text/html"},
		"Accept-Language": {"sv-SE", "en"},
	})
	if got["Accept"] != "text/html" {
		t.Fatalf("unexpected Accept value %q", got["Accept"])
	}
	if got["Accept-Language"] != "sv-SE, en" {
		t.Fatalf("unexpected Accept-Language value %q", got["Accept-Language"])
	}
}

func TestNoopRendererError(t *testing.T) {
	t.Parallel()

	renderer := NewNoop()
	if _, err := renderer.Render(context.Background(), scraper.FetchRequest{}); err == nil {
		t.Fatal("expected error from noop renderer")
	}
	if err := renderer.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
