package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher performs the plain HTTP probe of the target page.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (Page, error)
}

// Renderer loads the target page in a real browser and returns the DOM after
// scripts have run.
type Renderer interface {
	Render(ctx context.Context, request FetchRequest) (Page, error)
	Close(ctx context.Context) error
}

// Detector decides whether a probe result needs a headless render.
type Detector interface {
	NeedsJS(ctx context.Context, page Page) bool
}

// RobotsPolicy answers whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Limiter throttles outbound fetches per target host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
