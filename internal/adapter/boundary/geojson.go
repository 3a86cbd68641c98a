package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/ctessum/geom"
)

// GeoJSON wire structures. Only the members the region catalog needs are
// declared; geometry coordinates stay raw until the type is known.

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geometryObject `json:"geometry"`
}

type geometryObject struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// loadGeoJSON decodes a FeatureCollection of Polygon/MultiPolygon features.
func (l *Loader) loadGeoJSON(ctx context.Context) ([]domain.Region, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read boundary file %s: %w", l.path, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", l.path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, &domain.ConfigurationError{
			Field:  "boundary",
			Reason: fmt.Sprintf("expected a FeatureCollection, got %q", fc.Type),
		}
	}

	regions := make([]domain.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := propString(f.Properties, l.idField)
		if id == "" {
			return nil, &domain.ConfigurationError{
				Field:  l.idField,
				Reason: fmt.Sprintf("feature %d has no region id property", i),
			}
		}

		poly, err := decodePolygonal(f.Geometry)
		if err != nil {
			return nil, &domain.GeometryError{RegionID: id, Reason: err.Error()}
		}

		regions = append(regions, domain.Region{
			ID:      id,
			Name:    propString(f.Properties, l.nameField),
			AreaKm2: propFloat(f.Properties, l.areaField),
			Geom:    poly,
		})
	}
	return regions, nil
}

// decodePolygonal converts a GeoJSON Polygon or MultiPolygon geometry into
// geometry types. Closing vertices are stripped; rings are re-closed on
// export.
func decodePolygonal(g geometryObject) (geom.Polygonal, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		return polygonFromCoords(coords), nil
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		mp := make(geom.MultiPolygon, len(coords))
		for i, polyCoords := range coords {
			mp[i] = polygonFromCoords(polyCoords)
		}
		return mp, nil
	case "":
		return nil, fmt.Errorf("missing geometry")
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func polygonFromCoords(coords [][][]float64) geom.Polygon {
	poly := make(geom.Polygon, len(coords))
	for i, ring := range coords {
		ring = stripClosingVertex(ring)
		points := make([]geom.Point, len(ring))
		for j, pos := range ring {
			if len(pos) >= 2 {
				points[j] = geom.Point{X: pos[0], Y: pos[1]}
			}
		}
		poly[i] = points
	}
	return poly
}

// stripClosingVertex drops a GeoJSON ring's duplicated final position.
func stripClosingVertex(ring [][]float64) [][]float64 {
	if len(ring) < 2 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if len(first) >= 2 && len(last) >= 2 && first[0] == last[0] && first[1] == last[1] {
		return ring[:len(ring)-1]
	}
	return ring
}

func propString(props map[string]any, key string) string {
	if key == "" {
		return ""
	}
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func propFloat(props map[string]any, key string) float64 {
	if key == "" {
		return 0
	}
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
