package scraper

import (
	"net/http"
	"time"
)

// Listing is one business-for-sale entry extracted from the index page.
// Location and Industry stay empty strings when no signal matched.
type Listing struct {
	Title      string `json:"title"`
	Location   string `json:"location"`
	Industry   string `json:"industry"`
	ListingURL string `json:"listing_url"`
}

// FetchRequest captures everything needed to fetch the target page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// Page is the raw outcome of fetching the target URL, from either the probe
// fetcher or a headless render.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	UsedJS     bool
	Duration   time.Duration
}

// Diagnostics summarizes a parsed document for the empty-result fallback.
type Diagnostics struct {
	PageTitle string
	DivCount  int
	BodyBytes int
	Anchors   int
}

// Result captures one completed scrape run.
type Result struct {
	RunID      string    `json:"run_id"`
	Listings   []Listing `json:"listings"`
	StatusCode int       `json:"status_code"`
	UsedJS     bool      `json:"used_js"`
	FetchedAt  time.Time `json:"fetched_at"`
	DurationMs int64     `json:"duration_ms"`
}
