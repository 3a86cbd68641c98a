package domain

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// WGS84 is the proj4 definition for geographic WGS-84 coordinates, the
// spatial reference of the USGS catalog and of GeoJSON boundary files
// (RFC 7946 mandates it).
const WGS84 = "+proj=longlat +datum=WGS84 +no_defs"

// CRS is a spatial reference tag attached to every geometric dataset.
// Two datasets may only be compared after being expressed in the same CRS;
// identity is the normalized proj4 definition string.
type CRS struct {
	def string
	sr  *proj.SR
}

// ParseCRS parses a proj4 definition into a CRS. An empty definition is a
// ConfigurationError: a dataset without a spatial reference cannot take part
// in any geometric comparison.
func ParseCRS(def string) (*CRS, error) {
	normalized := normalizeProj4(def)
	if normalized == "" {
		return nil, &ConfigurationError{Field: "crs", Reason: "empty spatial reference definition"}
	}
	sr, err := proj.Parse(normalized)
	if err != nil {
		return nil, &ConfigurationError{Field: "crs", Reason: fmt.Sprintf("parse %q: %v", def, err)}
	}
	return &CRS{def: normalized, sr: sr}, nil
}

// CRSFromSR wraps a spatial reference that arrived already parsed, such as
// the WKT in a shapefile's .prj sidecar. def is the reference's identity for
// Equal comparisons; a dataset-attached reference never compares equal to a
// configured proj4 definition, so the pipeline reprojects explicitly instead
// of assuming they agree.
func CRSFromSR(def string, sr *proj.SR) (*CRS, error) {
	normalized := normalizeProj4(def)
	if normalized == "" {
		return nil, &ConfigurationError{Field: "crs", Reason: "empty spatial reference definition"}
	}
	if sr == nil {
		return nil, &ConfigurationError{Field: "crs", Reason: "nil spatial reference"}
	}
	return &CRS{def: normalized, sr: sr}, nil
}

// Def returns the normalized proj4 definition.
func (c *CRS) Def() string { return c.def }

// Equal reports whether two CRS values share the same normalized definition.
func (c *CRS) Equal(other *CRS) bool {
	if c == nil || other == nil {
		return false
	}
	return c.def == other.def
}

// SR returns the parsed spatial reference for transform construction.
func (c *CRS) SR() *proj.SR { return c.sr }

// normalizeProj4 collapses whitespace so that definitions differing only in
// spacing compare equal.
func normalizeProj4(def string) string {
	return strings.Join(strings.Fields(def), " ")
}

// ReprojectEvents returns a copy of events with coordinates transformed from
// one CRS into another. The input slice is never mutated. When from and to
// are already equal the copy carries the original coordinates unchanged.
func ReprojectEvents(events []Event, from, to *CRS) ([]Event, error) {
	if from == nil {
		return nil, &ConfigurationError{Field: "event_crs", Reason: "missing spatial reference"}
	}
	if to == nil {
		return nil, &ConfigurationError{Field: "region_crs", Reason: "missing spatial reference"}
	}

	out := make([]Event, len(events))
	copy(out, events)
	if from.Equal(to) {
		return out, nil
	}

	trans, err := from.SR().NewTransform(to.SR())
	if err != nil {
		return nil, &ConfigurationError{
			Field:  "crs",
			Reason: fmt.Sprintf("no transform from %q to %q: %v", from.Def(), to.Def(), err),
		}
	}

	for i, ev := range out {
		g, err := ev.Point().Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("reproject event %s: %w", ev.ID, err)
		}
		p, ok := g.(geom.Point)
		if !ok {
			return nil, fmt.Errorf("reproject event %s: transform returned %T, want point", ev.ID, g)
		}
		out[i].Geo = Geo{Lat: p.Y, Lon: p.X}
	}
	return out, nil
}
