package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/ctessum/geom"
)

// GeoJSON output structures, mirroring the standard FeatureCollection shape.

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geometry       `json:"geometry"`
}

type geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// eventFeatureCollection renders matched events as GeoJSON points with the
// containing region id attached, the shape interactive map layers consume.
func eventFeatureCollection(matched []domain.Association) featureCollection {
	features := make([]feature, 0, len(matched))
	for _, a := range matched {
		ev := a.Event
		props := map[string]any{
			"id":        ev.ID,
			"region_id": a.RegionID,
			"magnitude": ev.Magnitude,
			"depth_km":  ev.DepthKm,
		}
		if ev.MagnitudeClass != "" {
			props["magnitude_class"] = ev.MagnitudeClass
		}
		if ev.Place != "" {
			props["place"] = ev.Place
		}
		if !ev.EventTime.IsZero() {
			props["time"] = ev.EventTime.UTC().Format(time.RFC3339)
		}

		features = append(features, feature{
			Type:       "Feature",
			Properties: props,
			Geometry: geometry{
				Type:        "Point",
				Coordinates: []float64{ev.Geo.Lon, ev.Geo.Lat},
			},
		})
	}
	return featureCollection{Type: "FeatureCollection", Features: features}
}

// choroplethFeatureCollection joins per-region counts back onto the full
// region catalog. Every region appears, zero-count ones included.
func choroplethFeatureCollection(regions []domain.Region, counts map[string]int) (featureCollection, error) {
	features := make([]feature, 0, len(regions))
	for _, r := range regions {
		g, err := encodePolygonal(r.Geom)
		if err != nil {
			return featureCollection{}, &domain.GeometryError{RegionID: r.ID, Reason: err.Error()}
		}

		props := map[string]any{
			"region_id": r.ID,
			"count":     counts[r.ID],
		}
		if r.Name != "" {
			props["name"] = r.Name
		}
		if r.AreaKm2 > 0 {
			props["area_km2"] = r.AreaKm2
		}

		features = append(features, feature{
			Type:       "Feature",
			Properties: props,
			Geometry:   g,
		})
	}
	return featureCollection{Type: "FeatureCollection", Features: features}, nil
}

// encodePolygonal converts region geometry into GeoJSON coordinates,
// re-closing each ring as RFC 7946 requires.
func encodePolygonal(p geom.Polygonal) (geometry, error) {
	if p == nil {
		return geometry{}, fmt.Errorf("nil geometry")
	}
	polys := p.Polygons()
	switch len(polys) {
	case 0:
		return geometry{}, fmt.Errorf("empty geometry")
	case 1:
		return geometry{Type: "Polygon", Coordinates: polygonCoords(polys[0])}, nil
	default:
		coords := make([][][][]float64, len(polys))
		for i, poly := range polys {
			coords[i] = polygonCoords(poly)
		}
		return geometry{Type: "MultiPolygon", Coordinates: coords}, nil
	}
}

func polygonCoords(poly geom.Polygon) [][][]float64 {
	rings := make([][][]float64, len(poly))
	for i, ring := range poly {
		out := make([][]float64, 0, len(ring)+1)
		for _, pt := range ring {
			out = append(out, []float64{pt.X, pt.Y})
		}
		if len(out) > 0 {
			out = append(out, []float64{ring[0].X, ring[0].Y})
		}
		rings[i] = out
	}
	return rings
}

// writeJSONAtomic marshals v and renames a temp file over the target path,
// so readers never observe a partially written artifact.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
