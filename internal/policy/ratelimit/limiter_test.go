package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/bolagsradar/listings-scraper/internal/metrics"
)

func TestLimiterWait(t *testing.T) {
	metrics.Init()

	// 10 RPS = one token every 100ms, burst 1.
	l := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
	})

	ctx := context.Background()

	// First call consumes the initial token immediately.
	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}

	// Next one should wait ~100ms.
	start := time.Now()
	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}
	dur := time.Since(start)
	if dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiterDifferentDomains(t *testing.T) {
	metrics.Init()

	l := New(Config{
		DefaultRPS:   1, // 1 RPS = 1s interval
		DefaultBurst: 1,
	})

	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Domain B should not be blocked by A.
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("domain B blocked unexpectedly")
	}
}

func TestLimiterCancellation(t *testing.T) {
	metrics.Init()

	l := New(Config{
		DefaultRPS:   1,
		DefaultBurst: 1,
	})

	ctx := context.Background()
	if err := l.Wait(ctx, "https://c.com/1"); err != nil {
		t.Fatal(err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Wait(canceled, "https://c.com/1"); err == nil {
		t.Fatal("expected error after context cancellation")
	}
}
