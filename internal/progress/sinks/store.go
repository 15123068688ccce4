package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/progress"
	"github.com/bolagsradar/listings-scraper/internal/store"
)

// StoreSink persists progress deltas via a store.RunRepository. It collapses
// step-level counters per batch to reduce write amplification.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses step deltas and forwards them to the repository. It
// respects ctx deadlines and returns any repository errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	stats := make(map[statsKey]*statsDelta)

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
			if err := s.handleRunEvent(ctx, runID, evt); err != nil {
				return err
			}
		case progress.StageStepDone:
			s.recordStepStats(stats, runID, evt)
		}
	}

	for key, delta := range stats {
		if err := s.repo.UpsertStepStats(
			ctx,
			key.runID,
			key.step,
			key.statusClass,
			delta.completions,
			delta.bytes,
			delta.listings,
			delta.at,
		); err != nil {
			return fmt.Errorf("upsert step stats: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) handleRunEvent(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		if err := s.repo.UpsertRunStart(ctx, runID, evt.TS); err != nil {
			return fmt.Errorf("upsert run start: %w", err)
		}
	case progress.StageRunDone:
		if err := s.repo.CompleteRun(ctx, runID, evt.TS, store.RunSuccess, nil); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	case progress.StageRunError:
		var note *string
		if evt.Note != "" {
			note = &evt.Note
		}
		if err := s.repo.CompleteRun(ctx, runID, evt.TS, store.RunError, note); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

func (s *StoreSink) recordStepStats(stats map[statsKey]*statsDelta, runID uuid.UUID, evt progress.Event) {
	if evt.Step == "" {
		return
	}
	key := statsKey{
		runID:       runID,
		step:        string(evt.Step),
		statusClass: string(evt.StatusClass),
	}
	stat := stats[key]
	if stat == nil {
		stat = &statsDelta{}
		stats[key] = stat
	}
	stat.completions++
	stat.bytes += evt.Bytes
	stat.listings += evt.Listings
	if evt.TS.After(stat.at) || stat.at.IsZero() {
		stat.at = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type statsKey struct {
	runID       uuid.UUID
	step        string
	statusClass string
}

type statsDelta struct {
	completions int64
	bytes       int64
	listings    int64
	at          time.Time
}
