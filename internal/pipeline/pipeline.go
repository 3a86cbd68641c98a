// Package pipeline orchestrates the fetch-join-aggregate-export batch run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/couchcryptid/quake-region-etl/internal/observability"
	"github.com/google/uuid"
)

// EventSource fetches the point-event catalog.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]domain.Event, error)
}

// RegionSource loads the boundary catalog and its spatial reference.
type RegionSource interface {
	LoadRegions(ctx context.Context) ([]domain.Region, *domain.CRS, error)
}

// Exporter writes run artifacts.
type Exporter interface {
	Export(ctx context.Context, matched []domain.Association, regions []domain.Region, counts map[string]int) error
}

// Publisher forwards per-region counts to an external sink.
type Publisher interface {
	PublishCounts(ctx context.Context, report domain.RunReport) error
}

// Pipeline runs the batch: load regions, fetch events, reproject, join,
// aggregate, export, publish. Each run is a one-shot computation over
// immutable snapshots; data errors halt the run and name the offending
// record rather than skipping it.
type Pipeline struct {
	events    EventSource
	regions   RegionSource
	exporter  Exporter
	publisher Publisher // nil when no sink is configured
	eventCRS  *domain.CRS
	logger    *slog.Logger
	metrics   *observability.Metrics

	interval     time.Duration // 0 means run once
	fetchRetries int

	ready atomic.Bool

	mu         sync.RWMutex
	lastReport *domain.RunReport
}

// New creates a Pipeline with the given stages and observability.
// publisher may be nil.
func New(events EventSource, regions RegionSource, exporter Exporter, publisher Publisher,
	eventCRS *domain.CRS, logger *slog.Logger, metrics *observability.Metrics,
	interval time.Duration, fetchRetries int) *Pipeline {
	return &Pipeline{
		events:       events,
		regions:      regions,
		exporter:     exporter,
		publisher:    publisher,
		eventCRS:     eventCRS,
		logger:       logger,
		metrics:      metrics,
		interval:     interval,
		fetchRetries: fetchRetries,
	}
}

// CheckReadiness returns nil once at least one run has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no pipeline run has completed yet")
	}
	return nil
}

// LastReport returns the most recent completed run, if any.
func (p *Pipeline) LastReport() (domain.RunReport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastReport == nil {
		return domain.RunReport{}, false
	}
	return *p.lastReport, true
}

// Run executes the batch once, or repeatedly on the configured interval
// until the context is cancelled. In interval mode a failed run is logged
// and the next tick proceeds with fresh inputs; in one-shot mode the error
// is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)

	for {
		err := p.runOnce(ctx)
		switch {
		case err == nil:
			p.metrics.RunsTotal.WithLabelValues("success").Inc()
		case ctx.Err() != nil:
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
			p.metrics.RunsTotal.WithLabelValues("error").Inc()
			if p.interval == 0 {
				return err
			}
			p.logger.Error("run failed", "error", err)
		}

		if p.interval == 0 {
			return nil
		}
		if !sleepWithContext(ctx, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runOnce performs one complete batch run.
func (p *Pipeline) runOnce(ctx context.Context) error {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	regions, regionCRS, err := p.regions.LoadRegions(ctx)
	if err != nil {
		return err
	}
	p.metrics.RegionsLoaded.Set(float64(len(regions)))

	fetchStart := time.Now()
	events, err := p.fetchWithRetry(ctx)
	if err != nil {
		return err
	}
	p.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	p.metrics.EventsFetched.Add(float64(len(events)))

	enriched := make([]domain.Event, len(events))
	for i, ev := range events {
		enriched[i] = domain.EnrichEvent(ev)
	}

	// The projected copies exist only for the containment test; the
	// associations keep the original catalog coordinates for export.
	projected, err := domain.ReprojectEvents(enriched, p.eventCRS, regionCRS)
	if err != nil {
		return err
	}
	associations, err := domain.Filter(projected, regions, regionCRS, regionCRS)
	if err != nil {
		return err
	}
	for i := range associations {
		associations[i].Event = enriched[i]
	}

	matched := domain.Matched(associations)
	p.metrics.EventsMatched.Add(float64(len(matched)))
	p.metrics.EventsOutside.Add(float64(len(associations) - len(matched)))

	counts, err := domain.Aggregate(associations, regions)
	if err != nil {
		return err
	}

	exportStart := time.Now()
	if err := p.exporter.Export(ctx, matched, regions, counts); err != nil {
		return err
	}
	p.metrics.ExportDuration.Observe(time.Since(exportStart).Seconds())

	report := domain.RunReport{
		RunID:         uuid.NewString(),
		StartedAt:     start.UTC(),
		FinishedAt:    time.Now().UTC(),
		EventsTotal:   len(events),
		EventsMatched: len(matched),
		EventsOutside: len(associations) - len(matched),
		Regions:       len(regions),
		Counts:        domain.CountRows(regions, counts),
	}

	if p.publisher != nil {
		if err := p.publisher.PublishCounts(ctx, report); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.lastReport = &report
	p.mu.Unlock()
	p.ready.Store(true)

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("run complete",
		"run_id", report.RunID,
		"events", report.EventsTotal,
		"matched", report.EventsMatched,
		"outside", report.EventsOutside,
		"regions", report.Regions,
		"duration", time.Since(start),
	)
	return nil
}

// fetchWithRetry retries transient catalog fetch failures with exponential
// backoff: start at 200ms, double each retry, cap at 5s. Data errors
// (missing fields, malformed records) are never retried; re-fetching the
// same broken feed cannot fix them.
func (p *Pipeline) fetchWithRetry(ctx context.Context) ([]domain.Event, error) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var lastErr error
	for attempt := 0; attempt <= p.fetchRetries; attempt++ {
		events, err := p.events.FetchEvents(ctx)
		if err == nil {
			return events, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}

		lastErr = err
		p.logger.Warn("catalog fetch failed", "attempt", attempt+1, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return nil, err
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return nil, lastErr
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
