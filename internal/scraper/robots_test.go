package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestRobotsEnforcerHonorsDisallow(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	policy := NewRobotsEnforcer(true, "listings-scraper", zap.NewNop())
	ctx := context.Background()

	if policy.Allowed(ctx, srv.URL+"/private/page") {
		t.Fatal("disallowed path was allowed")
	}
	if !policy.Allowed(ctx, srv.URL+"/foretag-till-salu") {
		t.Fatal("allowed path was blocked")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("robots.txt fetched %d times, want 1 (cached)", got)
	}
}

func TestRobotsEnforcerAllowsOnFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	policy := NewRobotsEnforcer(true, "listings-scraper", zap.NewNop())
	if !policy.Allowed(context.Background(), srv.URL+"/anything") {
		t.Fatal("unreachable robots.txt should not block the scrape")
	}
}

func TestRobotsEnforcerRejectsUnparseableURL(t *testing.T) {
	t.Parallel()

	policy := NewRobotsEnforcer(true, "listings-scraper", zap.NewNop())
	if policy.Allowed(context.Background(), "://not-a-url") {
		t.Fatal("unparseable url was allowed")
	}
}

func TestRobotsDisabledAllowsEverything(t *testing.T) {
	t.Parallel()

	policy := NewRobotsEnforcer(false, "listings-scraper", zap.NewNop())
	if !policy.Allowed(context.Background(), "https://www.bolagsplatsen.se/foretag-till-salu") {
		t.Fatal("policy should allow everything when robots handling is off")
	}
	if !policy.Allowed(context.Background(), "://not-a-url") {
		t.Fatal("allow-all policy should not inspect the url")
	}
}

func TestRobotsEnforcerMissingRobotsAllows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	policy := NewRobotsEnforcer(true, "listings-scraper", zap.NewNop())
	if !policy.Allowed(context.Background(), srv.URL+"/foretag-till-salu") {
		t.Fatal("404 robots.txt should allow all paths")
	}
}
