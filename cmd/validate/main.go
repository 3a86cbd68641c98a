// Command validate performs end-to-end data integrity checks on a completed
// pipeline run: the catalog CSV fixture, the boundary fixture, and the
// exported GeoJSON artifacts. It verifies catalog fidelity, zero-fill region
// coverage, count consistency, and referential integrity.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -catalog data/mock/catalog.csv \
//	  -regions data/mock/regions.geojson \
//	  -out-dir out
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/adapter/boundary"
	"github.com/couchcryptid/quake-region-etl/internal/config"
	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogPath := flag.String("catalog", "", "path to the catalog CSV fixture")
	regionsPath := flag.String("regions", "", "path to the boundary GeoJSON fixture")
	outDir := flag.String("out-dir", "out", "directory containing exported artifacts")
	flag.Parse()

	if *catalogPath == "" || *regionsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*catalogPath, *regionsPath, *outDir); code != 0 {
		os.Exit(code)
	}
}

func run(catalogPath, regionsPath, outDir string) int {
	// Fixed clock matching genmock for reproducible timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Region Count Integrity Validation ===")
	fmt.Println()

	events, err := loadCatalog(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load catalog: %v\n", err)
		return 1
	}

	regions, crs, err := loadRegions(regionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load regions: %v\n", err)
		return 1
	}

	eventArtifact, err := loadArtifact(filepath.Join(outDir, "events.geojson"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load events artifact: %v\n", err)
		return 1
	}

	countArtifact, err := loadArtifact(filepath.Join(outDir, "region_counts.geojson"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load counts artifact: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCatalogFidelity(events),
		validateRegionCoverage(countArtifact, regions),
		validateCountConsistency(events, regions, crs, eventArtifact, countArtifact),
		validateReferentialIntegrity(eventArtifact, regions),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d catalog events, %d regions, %d exported points, %d count rows\n",
		len(events), len(regions), len(eventArtifact.Features), len(countArtifact.Features))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadCatalog(path string) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := domain.ParseCatalog(f)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i] = domain.EnrichEvent(events[i])
	}
	return events, nil
}

// loadRegions uses the real boundary loader so validation exercises the same
// code path as the pipeline.
func loadRegions(path string) ([]domain.Region, *domain.CRS, error) {
	cfg := &config.Config{
		BoundaryPath:      path,
		BoundaryIDField:   "GEOID",
		BoundaryNameField: "NAME",
		RegionCRS:         domain.WGS84,
	}
	loader := boundary.NewLoader(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return loader.LoadRegions(context.Background())
}

type artifactFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type artifactCollection struct {
	Type     string            `json:"type"`
	Features []artifactFeature `json:"features"`
}

func loadArtifact(path string) (*artifactCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc artifactCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%s: type is %q, want FeatureCollection", path, fc.Type)
	}
	return &fc, nil
}

func propString(f artifactFeature, key string) string {
	s, _ := f.Properties[key].(string)
	return s
}

func propInt(f artifactFeature, key string) (int, bool) {
	v, ok := f.Properties[key].(float64)
	return int(v), ok
}

// ── Phase 1: Catalog Fidelity ──
// The catalog fixture must parse cleanly into well-formed events.

func validateCatalogFidelity(events []domain.Event) *phase {
	p := &phase{name: "Phase 1: Catalog Fidelity (CSV)"}

	if len(events) == 0 {
		p.errorf("catalog produced no events")
		return p
	}

	seen := map[string]int{}
	for i := range events {
		e := &events[i]
		if e.ID == "" {
			p.errorf("event %d: missing ID", i)
			continue
		}
		seen[e.ID]++
		if e.EventTime.IsZero() {
			p.errorf("event %s: zero event time", e.ID)
		}
		if e.DayBucket == "" {
			p.errorf("event %s: missing day bucket", e.ID)
		}
		if e.Magnitude > 0 && e.MagnitudeClass == "" {
			p.errorf("event %s: magnitude %g has no class label", e.ID, e.Magnitude)
		}
	}
	for id, n := range seen {
		if n > 1 {
			p.errorf("duplicate event ID %q (%d occurrences)", id, n)
		}
	}
	return p
}

// ── Phase 2: Region Coverage ──
// Every region in the boundary fixture must appear exactly once in the
// choropleth artifact, zero-count regions included.

func validateRegionCoverage(counts *artifactCollection, regions []domain.Region) *phase {
	p := &phase{name: "Phase 2: Region Coverage (zero-fill)"}

	rows := map[string]int{}
	for i, f := range counts.Features {
		id := propString(f, "region_id")
		if id == "" {
			p.errorf("count feature %d: missing region_id", i)
			continue
		}
		rows[id]++
		if n, ok := propInt(f, "count"); !ok {
			p.errorf("region %s: missing count property", id)
		} else if n < 0 {
			p.errorf("region %s: negative count %d", id, n)
		}
	}

	for _, r := range regions {
		switch rows[r.ID] {
		case 0:
			p.errorf("region %s: absent from counts artifact", r.ID)
		case 1:
		default:
			p.errorf("region %s: appears %d times in counts artifact", r.ID, rows[r.ID])
		}
	}
	for id := range rows {
		if !regionExists(regions, id) {
			p.errorf("counts artifact names unknown region %q", id)
		}
	}
	return p
}

// ── Phase 3: Count Consistency ──
// Recompute the spatial join from the fixtures and compare with the artifacts.

func validateCountConsistency(events []domain.Event, regions []domain.Region, crs *domain.CRS,
	points, counts *artifactCollection) *phase {
	p := &phase{name: "Phase 3: Count Consistency (recompute)"}

	associations, err := domain.Filter(events, regions, crs, crs)
	if err != nil {
		p.errorf("recompute filter: %v", err)
		return p
	}
	expected, err := domain.Aggregate(associations, regions)
	if err != nil {
		p.errorf("recompute aggregate: %v", err)
		return p
	}
	matched := domain.Matched(associations)

	if len(points.Features) != len(matched) {
		p.errorf("events artifact has %d points, recompute matched %d", len(points.Features), len(matched))
	}

	total := 0
	for _, f := range counts.Features {
		id := propString(f, "region_id")
		n, ok := propInt(f, "count")
		if !ok {
			continue
		}
		total += n
		if want, known := expected[id]; known && n != want {
			p.errorf("region %s: artifact count %d, recompute %d", id, n, want)
		}
	}
	if total != len(matched) {
		p.errorf("counts sum to %d, recompute matched %d", total, len(matched))
	}
	return p
}

// ── Phase 4: Referential Integrity ──
// Every exported point must name an existing region.

func validateReferentialIntegrity(points *artifactCollection, regions []domain.Region) *phase {
	p := &phase{name: "Phase 4: Referential Integrity (points)"}

	seen := map[string]int{}
	for i, f := range points.Features {
		id := propString(f, "id")
		if id == "" {
			p.errorf("point feature %d: missing id", i)
		} else {
			seen[id]++
		}

		regionID := propString(f, "region_id")
		if regionID == "" {
			p.errorf("point %s: missing region_id", id)
		} else if !regionExists(regions, regionID) {
			p.errorf("point %s: unknown region_id %q", id, regionID)
		}
	}
	for id, n := range seen {
		if n > 1 {
			p.errorf("duplicate point id %q (%d occurrences)", id, n)
		}
	}
	return p
}

func regionExists(regions []domain.Region, id string) bool {
	for _, r := range regions {
		if r.ID == id {
			return true
		}
	}
	return false
}
