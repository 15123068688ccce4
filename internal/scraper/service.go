package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/metrics"
	"github.com/bolagsradar/listings-scraper/internal/progress"
)

// ServiceConfig controls the scrape pipeline.
type ServiceConfig struct {
	TargetURL      string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	Headless       bool
}

// Service runs the full scrape pipeline: rate limit, robots check, probe
// fetch, optional headless render, parse.
type Service struct {
	cfg      ServiceConfig
	fetcher  Fetcher
	renderer Renderer
	detector Detector
	robots   RobotsPolicy
	limiter  Limiter
	parser   *Parser
	clock    Clock
	ids      IDGenerator
	emitter  progress.Emitter
	logger   *zap.Logger
}

// NewService constructs a Service. Renderer, detector, robots, limiter and
// emitter are optional; the corresponding pipeline stage is skipped when nil.
func NewService(
	cfg ServiceConfig,
	fetcher Fetcher,
	renderer Renderer,
	detector Detector,
	robots RobotsPolicy,
	limiter Limiter,
	parser *Parser,
	clock Clock,
	ids IDGenerator,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		robots:   robots,
		limiter:  limiter,
		parser:   parser,
		clock:    clock,
		ids:      ids,
		emitter:  emitter,
		logger:   logger,
	}
}

// Scrape fetches the target page and extracts business listings. The whole
// pipeline runs under the configured timeout.
func (s *Service) Scrape(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	runID := s.newRunID()
	started := time.Now()
	s.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    started.UTC(),
		Stage: progress.StageRunStart,
		URL:   s.cfg.TargetURL,
	})

	result, err := s.run(ctx, runID, started)
	if err != nil {
		s.emitRunEnd(runID, started, 0, err)
		return Result{}, err
	}
	s.emitRunEnd(runID, started, int64(len(result.Listings)), nil)
	return result, nil
}

func (s *Service) run(ctx context.Context, runID uuid.UUID, started time.Time) (Result, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.cfg.TargetURL); err != nil {
			return Result{}, err
		}
	}
	if s.robots != nil && !s.robots.Allowed(ctx, s.cfg.TargetURL) {
		s.logger.Warn("scrape blocked by robots policy", zap.String("url", s.cfg.TargetURL))
		return Result{}, ErrRobotsDisallowed
	}

	page, err := s.probe(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	if page.StatusCode >= 400 {
		return Result{}, &StatusError{StatusCode: page.StatusCode, URL: s.cfg.TargetURL}
	}

	page = s.maybeRender(ctx, runID, page)

	listings, err := s.parse(runID, page)
	if err != nil {
		return Result{}, err
	}

	return Result{
		RunID:      runID.String(),
		Listings:   listings,
		StatusCode: page.StatusCode,
		UsedJS:     page.UsedJS,
		FetchedAt:  s.now(),
		DurationMs: time.Since(started).Milliseconds(),
	}, nil
}

func (s *Service) probe(ctx context.Context, runID uuid.UUID) (Page, error) {
	start := time.Now()
	s.emitStep(runID, progress.Event{Stage: progress.StageStepStart, Step: progress.StepProbe, URL: s.cfg.TargetURL})

	page, err := s.fetcher.Fetch(ctx, FetchRequest{
		URL:     s.cfg.TargetURL,
		Headers: s.buildHeaders(),
	})
	if err != nil {
		metrics.ObserveScrape(s.cfg.TargetURL, "error", 0)
		s.emitStep(runID, progress.Event{
			Stage: progress.StageStepError,
			Step:  progress.StepProbe,
			URL:   s.cfg.TargetURL,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return Page{}, &FetchError{Err: err}
	}

	metrics.ObserveScrape(s.cfg.TargetURL, fmt.Sprintf("%d", page.StatusCode), len(page.Body))
	s.emitStep(runID, progress.Event{
		Stage:       progress.StageStepDone,
		Step:        progress.StepProbe,
		URL:         s.cfg.TargetURL,
		Bytes:       int64(len(page.Body)),
		StatusClass: progress.ClassifyStatus(page.StatusCode),
		Dur:         time.Since(start),
	})
	s.logger.Debug("probe fetch finished",
		zap.Int("status", page.StatusCode),
		zap.Int("bytes", len(page.Body)),
		zap.Duration("took", page.Duration),
	)
	return page, nil
}

// maybeRender escalates to a headless render when the probe result looks like
// a JavaScript shell. A failed render falls back to the probe page so the
// scrape still answers.
func (s *Service) maybeRender(ctx context.Context, runID uuid.UUID, page Page) Page {
	if !s.cfg.Headless || s.renderer == nil || s.detector == nil {
		return page
	}
	if !s.detector.NeedsJS(ctx, page) {
		return page
	}

	start := time.Now()
	s.emitStep(runID, progress.Event{Stage: progress.StageStepStart, Step: progress.StepRender, URL: s.cfg.TargetURL})

	rendered, err := s.renderer.Render(ctx, FetchRequest{
		URL:     s.cfg.TargetURL,
		Headers: s.buildHeaders(),
	})
	if err != nil {
		s.logger.Warn("headless render failed, using probe result", zap.Error(err))
		s.emitStep(runID, progress.Event{
			Stage: progress.StageStepError,
			Step:  progress.StepRender,
			URL:   s.cfg.TargetURL,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return page
	}

	s.emitStep(runID, progress.Event{
		Stage:       progress.StageStepDone,
		Step:        progress.StepRender,
		URL:         s.cfg.TargetURL,
		Bytes:       int64(len(rendered.Body)),
		StatusClass: progress.ClassifyStatus(rendered.StatusCode),
		Dur:         time.Since(start),
	})
	s.logger.Info("headless render applied",
		zap.Int("status", rendered.StatusCode),
		zap.Int("bytes", len(rendered.Body)),
	)
	return rendered
}

func (s *Service) parse(runID uuid.UUID, page Page) ([]Listing, error) {
	start := time.Now()
	s.emitStep(runID, progress.Event{Stage: progress.StageStepStart, Step: progress.StepParse, URL: s.cfg.TargetURL})

	listings, diags, err := s.parser.Parse(page.Body)
	if err != nil {
		s.emitStep(runID, progress.Event{
			Stage: progress.StageStepError,
			Step:  progress.StepParse,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return nil, fmt.Errorf("parse listings: %w", err)
	}

	metrics.ObserveListings(len(listings))
	if len(listings) == 0 {
		// An empty result ships one diagnostic entry describing what the
		// parser saw instead of a bare empty array.
		s.logger.Warn("no listings found",
			zap.String("page_title", diags.PageTitle),
			zap.Int("divs", diags.DivCount),
			zap.Int("bytes", diags.BodyBytes),
		)
		listings = append(listings, DebugListing(diags))
	}

	s.emitStep(runID, progress.Event{
		Stage:    progress.StageStepDone,
		Step:     progress.StepParse,
		Listings: int64(len(listings)),
		Dur:      time.Since(start),
	})
	return listings, nil
}

// buildHeaders returns the browser-like headers the target expects.
// Accept-Encoding stays unset: pinning it by hand turns off the transport's
// transparent gzip handling.
func (s *Service) buildHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	if s.cfg.AcceptLanguage != "" {
		h.Set("Accept-Language", s.cfg.AcceptLanguage)
	}
	h.Set("Connection", "keep-alive")
	return h
}

func (s *Service) newRunID() uuid.UUID {
	if s.ids == nil {
		return uuid.New()
	}
	id, err := s.ids.NewRawID()
	if err != nil {
		s.logger.Warn("run id generation failed", zap.Error(err))
		return uuid.New()
	}
	return id
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Service) emit(ev progress.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ev)
}

func (s *Service) emitStep(runID uuid.UUID, ev progress.Event) {
	ev.RunID = progress.UUIDToBytes(runID)
	ev.TS = time.Now().UTC()
	s.emit(ev)
}

func (s *Service) emitRunEnd(runID uuid.UUID, started time.Time, listings int64, err error) {
	ev := progress.Event{
		RunID:    progress.UUIDToBytes(runID),
		TS:       time.Now().UTC(),
		Stage:    progress.StageRunDone,
		URL:      s.cfg.TargetURL,
		Listings: listings,
		Dur:      time.Since(started),
	}
	if err != nil {
		ev.Stage = progress.StageRunError
		ev.Note = err.Error()
	}
	s.emit(ev)
}
