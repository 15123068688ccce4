package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bolagsradar/listings-scraper/internal/progress"
)

// PrometheusSink exports scrape progress metrics via Prometheus. It owns all
// collectors for runs started/completed/running and per-step counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	stepCompletions *prometheus.CounterVec
	stepBytes       *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	listingsTotal   prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_runs_started_total",
			Help: "Total scrape runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_runs_completed_total",
			Help: "Total scrape runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_runs_running",
			Help: "Current number of in-flight scrape runs.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall time per completed scrape run.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		stepCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_steps_total",
			Help: "Step completions partitioned by step and status class.",
		}, []string{"step", "status_class"}),
		stepBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_step_bytes_total",
			Help: "Document bytes handled per step.",
		}, []string{"step"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_step_duration_seconds",
			Help:    "Step duration partitioned by step.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"step"}),
		listingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_listings_extracted_total",
			Help: "Listings extracted across all runs.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.stepCompletions,
		s.stepBytes,
		s.stepDuration,
		s.listingsTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StageStepDone, progress.StageStepError:
		s.handleStepEvent(evt)
	}
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageRunStart && s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleStepEvent(evt progress.Event) {
	step := string(evt.Step)
	if step == "" {
		step = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		if evt.Stage == progress.StageStepError {
			statusClass = "error"
		} else {
			statusClass = "none"
		}
	}
	s.stepCompletions.WithLabelValues(step, statusClass).Inc()
	if evt.Bytes > 0 {
		s.stepBytes.WithLabelValues(step).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.stepDuration.WithLabelValues(step).Observe(evt.Dur.Seconds())
	}
	if evt.Listings > 0 {
		s.listingsTotal.Add(float64(evt.Listings))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
