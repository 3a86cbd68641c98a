package export

import (
	"fmt"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// countRecord is the shapefile row layout: region geometry plus the
// attribute table columns (field names become DBF column names). The
// geometry field must be concrete geom.Polygon; the encoder dispatches
// on the archetype field's type name and has no MultiPolygon case, so
// multi-part regions are flattened into one multi-ring Polygon (a
// shapefile POLYGON record holds multiple parts natively).
type countRecord struct {
	geom.Polygon
	GEOID string
	NAME  string
	COUNT int
}

// flattenRings collapses a Polygonal into a single Polygon whose rings
// are the union of all member polygons' rings.
func flattenRings(p geom.Polygonal) geom.Polygon {
	var flat geom.Polygon
	for _, poly := range p.Polygons() {
		flat = append(flat, poly...)
	}
	return flat
}

// writeCountsShapefile writes the per-region counts joined to region
// geometry as a shapefile row per region, zero-count regions included.
func writeCountsShapefile(path string, regions []domain.Region, counts map[string]int) error {
	enc, err := shp.NewEncoder(path, countRecord{})
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", path, err)
	}

	for _, r := range regions {
		rec := countRecord{
			Polygon: flattenRings(r.Geom),
			GEOID:   r.ID,
			NAME:    r.Name,
			COUNT:   counts[r.ID],
		}
		if err := enc.Encode(rec); err != nil {
			enc.Close()
			return fmt.Errorf("encode region %s: %w", r.ID, err)
		}
	}

	enc.Close()
	return nil
}
