package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/couchcryptid/quake-region-etl/internal/observability"
	"github.com/ctessum/geom"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEvents struct {
	events   []domain.Event
	err      error
	failures int // number of calls that return err before succeeding
	calls    int
}

func (m *mockEvents) FetchEvents(_ context.Context) ([]domain.Event, error) {
	m.calls++
	if m.err != nil && (m.failures == 0 || m.calls <= m.failures) {
		return nil, m.err
	}
	return m.events, nil
}

type mockRegions struct {
	regions []domain.Region
	crs     *domain.CRS
	err     error
}

func (m *mockRegions) LoadRegions(_ context.Context) ([]domain.Region, *domain.CRS, error) {
	return m.regions, m.crs, m.err
}

type mockExporter struct {
	matched []domain.Association
	regions []domain.Region
	counts  map[string]int
	err     error
	calls   int
}

func (m *mockExporter) Export(_ context.Context, matched []domain.Association, regions []domain.Region, counts map[string]int) error {
	m.calls++
	m.matched = matched
	m.regions = regions
	m.counts = counts
	return m.err
}

type mockPublisher struct {
	reports []domain.RunReport
	err     error
}

func (m *mockPublisher) PublishCounts(_ context.Context, report domain.RunReport) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, report)
	return nil
}

func square(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}}
}

func eventAt(id string, lon, lat float64) domain.Event {
	return domain.Event{
		ID:        id,
		EventType: "earthquake",
		Geo:       domain.Geo{Lat: lat, Lon: lon},
		Magnitude: 3.4,
		EventTime: time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC),
	}
}

func wgs84(t *testing.T) *domain.CRS {
	t.Helper()
	crs, err := domain.ParseCRS(domain.WGS84)
	require.NoError(t, err)
	return crs
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, events *mockEvents, regions *mockRegions, exporter *mockExporter,
	publisher Publisher, interval time.Duration) (*Pipeline, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	p := New(events, regions, exporter, publisher, wgs84(t), discardLogger(), metrics, interval, 3)
	return p, metrics
}

func TestRunOnce_HappyPath(t *testing.T) {
	crs := wgs84(t)
	events := &mockEvents{events: []domain.Event{
		eventAt("ev1", 1, 1),
		eventAt("ev2", 2, 2),
		eventAt("ev3", 50, 50), // outside every region
	}}
	regions := &mockRegions{
		regions: []domain.Region{
			{ID: "A", Name: "Alpha", Geom: square(0, 0, 10, 10)},
			{ID: "B", Name: "Beta", Geom: square(20, 20, 30, 30)},
		},
		crs: crs,
	}
	exporter := &mockExporter{}
	publisher := &mockPublisher{}

	p, metrics := newTestPipeline(t, events, regions, exporter, publisher, 0)
	require.NoError(t, p.Run(context.Background()))

	require.Equal(t, 1, exporter.calls)
	assert.Len(t, exporter.matched, 2)
	assert.Equal(t, map[string]int{"A": 2, "B": 0}, exporter.counts)

	require.Len(t, publisher.reports, 1)
	report := publisher.reports[0]
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.EventsTotal)
	assert.Equal(t, 2, report.EventsMatched)
	assert.Equal(t, 1, report.EventsOutside)
	assert.Equal(t, 2, report.Regions)
	require.Len(t, report.Counts, 2)
	assert.Equal(t, "A", report.Counts[0].RegionID)
	assert.Equal(t, 2, report.Counts[0].Count)
	assert.Equal(t, 0, report.Counts[1].Count)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.EventsFetched))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsMatched))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EventsOutside))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RegionsLoaded))
}

func TestRunOnce_EnrichesEventsBeforeExport(t *testing.T) {
	events := &mockEvents{events: []domain.Event{eventAt("ev1", 1, 1)}}
	regions := &mockRegions{
		regions: []domain.Region{{ID: "A", Geom: square(0, 0, 10, 10)}},
		crs:     wgs84(t),
	}
	exporter := &mockExporter{}

	p, _ := newTestPipeline(t, events, regions, exporter, nil, 0)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, exporter.matched, 1)
	got := exporter.matched[0].Event
	assert.Equal(t, "minor", got.MagnitudeClass)
	assert.Equal(t, "2024-04-26", got.DayBucket)
	assert.False(t, got.ProcessedAt.IsZero())
}

func TestRun_RetriesTransientFetchErrors(t *testing.T) {
	events := &mockEvents{
		events:   []domain.Event{eventAt("ev1", 1, 1)},
		err:      fmt.Errorf("fetch catalog: connection refused"),
		failures: 2,
	}
	regions := &mockRegions{
		regions: []domain.Region{{ID: "A", Geom: square(0, 0, 10, 10)}},
		crs:     wgs84(t),
	}
	exporter := &mockExporter{}

	p, metrics := newTestPipeline(t, events, regions, exporter, nil, 0)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 3, events.calls, "two failures then a success")
	assert.Equal(t, 1, exporter.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("success")))
}

func TestRun_DoesNotRetryConfigurationErrors(t *testing.T) {
	events := &mockEvents{err: &domain.ConfigurationError{Field: "latitude", Reason: "not a number"}}
	regions := &mockRegions{
		regions: []domain.Region{{ID: "A", Geom: square(0, 0, 10, 10)}},
		crs:     wgs84(t),
	}
	exporter := &mockExporter{}

	p, metrics := newTestPipeline(t, events, regions, exporter, nil, 0)

	err := p.Run(context.Background())
	require.Error(t, err)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, events.calls, "data errors are not retried")
	assert.Equal(t, 0, exporter.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("error")))
}

func TestRun_RegionLoadErrorFailsRun(t *testing.T) {
	events := &mockEvents{events: []domain.Event{eventAt("ev1", 1, 1)}}
	regions := &mockRegions{err: errors.New("open boundaries: no such file")}
	exporter := &mockExporter{}

	p, _ := newTestPipeline(t, events, regions, exporter, nil, 0)

	require.Error(t, p.Run(context.Background()))
	assert.Equal(t, 0, events.calls, "regions load before any fetch")
	assert.Equal(t, 0, exporter.calls)
}

func TestRun_PublishErrorFailsRun(t *testing.T) {
	events := &mockEvents{events: []domain.Event{eventAt("ev1", 1, 1)}}
	regions := &mockRegions{
		regions: []domain.Region{{ID: "A", Geom: square(0, 0, 10, 10)}},
		crs:     wgs84(t),
	}
	exporter := &mockExporter{}
	publisher := &mockPublisher{err: errors.New("kafka: broker unreachable")}

	p, _ := newTestPipeline(t, events, regions, exporter, publisher, 0)

	require.Error(t, p.Run(context.Background()))
	assert.Error(t, p.CheckReadiness(context.Background()), "failed run must not mark the service ready")
	_, ok := p.LastReport()
	assert.False(t, ok)
}

func TestReadinessAndLastReport(t *testing.T) {
	events := &mockEvents{events: []domain.Event{eventAt("ev1", 1, 1)}}
	regions := &mockRegions{
		regions: []domain.Region{{ID: "A", Geom: square(0, 0, 10, 10)}},
		crs:     wgs84(t),
	}
	exporter := &mockExporter{}

	p, _ := newTestPipeline(t, events, regions, exporter, nil, 0)

	assert.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LastReport()
	assert.False(t, ok)

	require.NoError(t, p.Run(context.Background()))

	assert.NoError(t, p.CheckReadiness(context.Background()))
	report, ok := p.LastReport()
	require.True(t, ok)
	assert.Equal(t, 1, report.EventsMatched)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRun_IntervalStopsOnCancel(t *testing.T) {
	events := &mockEvents{events: []domain.Event{eventAt("ev1", 1, 1)}}
	regions := &mockRegions{
		regions: []domain.Region{{ID: "A", Geom: square(0, 0, 10, 10)}},
		crs:     wgs84(t),
	}
	exporter := &mockExporter{}

	p, _ := newTestPipeline(t, events, regions, exporter, nil, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.GreaterOrEqual(t, exporter.calls, 2, "interval mode re-runs until cancelled")
}

func TestNextBackoff(t *testing.T) {
	maxBackoff := 5 * time.Second
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(3*time.Second, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff, maxBackoff))
}
