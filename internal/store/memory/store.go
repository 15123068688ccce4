// Package memory provides a bounded in-memory run repository. The scraper
// keeps no durable state; recent run history lives here and is evicted
// oldest-first once the configured limit is reached.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bolagsradar/listings-scraper/internal/store"
)

const defaultHistoryLimit = 100

// Store implements store.RunRepository backed by process memory.
type Store struct {
	mu           sync.RWMutex
	runs         map[uuid.UUID]*runState
	order        []uuid.UUID
	historyLimit int
}

type runState struct {
	run   store.Run
	steps map[stepKey]*store.StepStats
}

type stepKey struct {
	step        string
	statusClass string
}

// NewStore constructs a Store retaining at most historyLimit runs.
func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Store{
		runs:         make(map[uuid.UUID]*runState),
		historyLimit: historyLimit,
	}
}

// UpsertRunStart records the run as running. Repeated calls keep the first
// observed start time.
func (s *Store) UpsertRunStart(_ context.Context, runID uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.runs[runID]; ok {
		if state.run.StartedAt.IsZero() || startedAt.Before(state.run.StartedAt) {
			state.run.StartedAt = startedAt
		}
		return nil
	}
	s.insert(runID, store.Run{
		ID:        runID,
		StartedAt: startedAt,
		Status:    store.RunRunning,
	})
	return nil
}

// CompleteRun marks the run finished. Runs whose start event was dropped are
// created on the spot so history stays queryable.
func (s *Store) CompleteRun(
	_ context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.runs[runID]
	if !ok {
		state = s.insert(runID, store.Run{ID: runID, StartedAt: finishedAt})
	}
	state.run.FinishedAt = &finishedAt
	state.run.Status = status
	state.run.ErrorMessage = errMsg
	return nil
}

// UpsertStepStats applies deltas per (run, step, statusClass).
func (s *Store) UpsertStepStats(
	_ context.Context,
	runID uuid.UUID,
	step string,
	statusClass string,
	deltaCompletions int64,
	deltaBytes int64,
	deltaListings int64,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.runs[runID]
	if !ok {
		state = s.insert(runID, store.Run{
			ID:        runID,
			StartedAt: at,
			Status:    store.RunRunning,
		})
	}
	key := stepKey{step: step, statusClass: statusClass}
	stats := state.steps[key]
	if stats == nil {
		stats = &store.StepStats{RunID: runID, Step: step, StatusClass: statusClass}
		state.steps[key] = stats
	}
	stats.Completions += deltaCompletions
	stats.BytesTotal += deltaBytes
	stats.Listings += deltaListings
	if at.After(stats.LastUpdate) {
		stats.LastUpdate = at
	}
	state.run.Listings += deltaListings
	return nil
}

// GetRun loads a single run or returns store.ErrNotFound.
func (s *Store) GetRun(_ context.Context, runID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.runs[runID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return cloneRun(state.run), nil
}

// ListRuns returns runs newest-first, optionally filtered by status.
func (s *Store) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]store.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		state, ok := s.runs[s.order[i]]
		if !ok {
			continue
		}
		if status != nil && state.run.Status != *status {
			continue
		}
		matched = append(matched, cloneRun(state.run))
	}
	return window(matched, limit, offset), nil
}

// ListRunSteps returns aggregated step stats for one run, ordered by step
// label then status class.
func (s *Store) ListRunSteps(_ context.Context, runID uuid.UUID, limit, offset int) ([]store.StepStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.runs[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	stats := make([]store.StepStats, 0, len(state.steps))
	for _, st := range state.steps {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Step != stats[j].Step {
			return stats[i].Step < stats[j].Step
		}
		return stats[i].StatusClass < stats[j].StatusClass
	})
	return window(stats, limit, offset), nil
}

// insert registers a new run and evicts the oldest once over the limit. The
// caller must hold the write lock.
func (s *Store) insert(runID uuid.UUID, run store.Run) *runState {
	state := &runState{
		run:   run,
		steps: make(map[stepKey]*store.StepStats),
	}
	s.runs[runID] = state
	s.order = append(s.order, runID)
	for len(s.order) > s.historyLimit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
	}
	return state
}

func cloneRun(run store.Run) store.Run {
	out := run
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		out.FinishedAt = &finished
	}
	if run.ErrorMessage != nil {
		msg := *run.ErrorMessage
		out.ErrorMessage = &msg
	}
	return out
}

func window[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
