// Command genmock generates a synthetic earthquake catalog CSV and a matching
// region-grid GeoJSON fixture. It runs the generated catalog through the
// actual domain packages so the printed counts match real pipeline behavior
// and can be pasted into test assertions.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -catalog-out data/mock/catalog.csv \
//	  -regions-out data/mock/regions.geojson \
//	  -events 200
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/ctessum/geom"
	"github.com/jonboulle/clockwork"
)

// The grid covers a California-ish bounding box. Events are scattered over a
// slightly larger box so some land outside every region.
const (
	gridMinLon = -125.0
	gridMinLat = 32.0
	gridMaxLon = -114.0
	gridMaxLat = 42.0
	gridCols   = 3
	gridRows   = 3
)

var baseTime = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	catalogOut := flag.String("catalog-out", "", "output path for the catalog CSV fixture")
	regionsOut := flag.String("regions-out", "", "output path for the region-grid GeoJSON fixture")
	events := flag.Int("events", 200, "number of events to generate")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *catalogOut == "" || *regionsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -catalog-out, -regions-out")
	}

	// Fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	regions := gridRegions()
	catalogCSV := generateCatalog(rand.New(rand.NewSource(*seed)), *events)

	if err := writeFile(*catalogOut, catalogCSV); err != nil {
		return fmt.Errorf("writing catalog fixture: %w", err)
	}
	log.Printf("wrote catalog fixture: %s", *catalogOut)

	regionsJSON, err := regionsGeoJSON(regions)
	if err != nil {
		return err
	}
	if err := writeFile(*regionsOut, regionsJSON); err != nil {
		return fmt.Errorf("writing regions fixture: %w", err)
	}
	log.Printf("wrote regions fixture: %s", *regionsOut)

	return printStats(catalogCSV, regions)
}

// gridRegions tiles the bounding box into gridCols x gridRows square regions.
func gridRegions() []domain.Region {
	cellW := (gridMaxLon - gridMinLon) / gridCols
	cellH := (gridMaxLat - gridMinLat) / gridRows

	regions := make([]domain.Region, 0, gridCols*gridRows)
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			minLon := gridMinLon + float64(col)*cellW
			minLat := gridMinLat + float64(row)*cellH
			regions = append(regions, domain.Region{
				ID:   fmt.Sprintf("G%d%d", row, col),
				Name: fmt.Sprintf("Grid %d-%d", row, col),
				Geom: squarePolygon(minLon, minLat, minLon+cellW, minLat+cellH),
			})
		}
	}
	return regions
}

func generateCatalog(rng *rand.Rand, n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("time,latitude,longitude,depth,mag,magType,nst,gap,dmin,rms,net,id,updated,place,type\n")

	for i := 0; i < n; i++ {
		// Pad the box by 3 degrees on each side so roughly a third of the
		// events fall outside the grid.
		lon := gridMinLon - 3 + rng.Float64()*(gridMaxLon-gridMinLon+6)
		lat := gridMinLat - 3 + rng.Float64()*(gridMaxLat-gridMinLat+6)
		mag := rng.Float64() * 7
		depth := rng.Float64() * 30
		ts := baseTime.Add(time.Duration(i) * time.Minute)

		fmt.Fprintf(&buf, "%s,%.4f,%.4f,%.2f,%.2f,ml,,,,,mock,mock%04d,%s,\"%d km test region\",earthquake\n",
			ts.Format(time.RFC3339), lat, lon, depth, mag, i,
			ts.Format(time.RFC3339), int(depth))
	}
	return buf.Bytes()
}

func squarePolygon(minLon, minLat, maxLon, maxLat float64) geom.Polygon {
	return geom.Polygon{{
		{X: minLon, Y: minLat},
		{X: maxLon, Y: minLat},
		{X: maxLon, Y: maxLat},
		{X: minLon, Y: maxLat},
	}}
}

func squarePolygonCoords(minLon, minLat, maxLon, maxLat float64) [][][2]float64 {
	return [][][2]float64{{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}
}

type fixtureFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   map[string]any `json:"geometry"`
}

func regionsGeoJSON(regions []domain.Region) ([]byte, error) {
	cellW := (gridMaxLon - gridMinLon) / gridCols
	cellH := (gridMaxLat - gridMinLat) / gridRows

	features := make([]fixtureFeature, 0, len(regions))
	for i, r := range regions {
		col := i % gridCols
		row := i / gridCols
		minLon := gridMinLon + float64(col)*cellW
		minLat := gridMinLat + float64(row)*cellH
		features = append(features, fixtureFeature{
			Type: "Feature",
			Properties: map[string]any{
				"GEOID": r.ID,
				"NAME":  r.Name,
			},
			Geometry: map[string]any{
				"type":        "Polygon",
				"coordinates": squarePolygonCoords(minLon, minLat, minLon+cellW, minLat+cellH),
			},
		})
	}

	data, err := json.MarshalIndent(map[string]any{
		"type":     "FeatureCollection",
		"features": features,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal regions: %w", err)
	}
	return append(data, '\n'), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// printStats runs the generated catalog through parse, filter, and aggregate
// and prints the per-region counts for updating test assertions.
func printStats(catalogCSV []byte, regions []domain.Region) error {
	events, err := domain.ParseCatalog(bytes.NewReader(catalogCSV))
	if err != nil {
		return fmt.Errorf("generated catalog does not parse: %w", err)
	}
	for i := range events {
		events[i] = domain.EnrichEvent(events[i])
	}

	crs, err := domain.ParseCRS(domain.WGS84)
	if err != nil {
		return err
	}
	associations, err := domain.Filter(events, regions, crs, crs)
	if err != nil {
		return err
	}
	counts, err := domain.Aggregate(associations, regions)
	if err != nil {
		return err
	}
	matched := domain.Matched(associations)

	classCounts := map[string]int{}
	for i := range events {
		classCounts[events[i].MagnitudeClass]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total events: %d\n", len(events))
	fmt.Printf("Matched: %d, Outside: %d\n", len(matched), len(events)-len(matched))
	fmt.Print("By region: ")
	for _, rc := range domain.CountRows(regions, counts) {
		fmt.Printf("%s=%d ", rc.RegionID, rc.Count)
	}
	fmt.Println()
	fmt.Printf("By class: %s\n", formatClassCounts(classCounts))
	return nil
}

func formatClassCounts(classCounts map[string]int) string {
	order := []string{"micro", "minor", "light", "moderate", "strong", "major", "great"}
	parts := make([]string, 0, len(order))
	for _, c := range order {
		if n := classCounts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	return strings.Join(parts, ", ")
}
