package headless

import (
	"context"
	"errors"

	"github.com/bolagsradar/listings-scraper/internal/scraper"
)

// Noop implements scraper.Renderer but always returns an error, signalling
// that headless rendering is disabled in the current deployment.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns an error since this is a stub implementation.
func (Noop) Render(_ context.Context, _ scraper.FetchRequest) (scraper.Page, error) {
	return scraper.Page{}, errors.New("headless renderer not configured")
}

// Close is a no-op.
func (Noop) Close(context.Context) error {
	return nil
}
