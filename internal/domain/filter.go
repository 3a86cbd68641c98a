package domain

import (
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// regionEntry adapts a catalog region for R-tree indexing while remembering
// its catalog position for the tie-break.
type regionEntry struct {
	geom.Polygonal
	region *Region
	pos    int
}

// ValidateRegionGeometry checks a region's geometry for the malformations
// the join cannot tolerate: nil geometry, no polygons, or a ring with fewer
// than three vertices. Self-intersection is left to the geometry library.
func ValidateRegionGeometry(r Region) error {
	if r.Geom == nil {
		return &GeometryError{RegionID: r.ID, Reason: "nil geometry"}
	}
	polys := r.Geom.Polygons()
	if len(polys) == 0 {
		return &GeometryError{RegionID: r.ID, Reason: "empty geometry"}
	}
	for _, poly := range polys {
		if len(poly) == 0 {
			return &GeometryError{RegionID: r.ID, Reason: "polygon with no rings"}
		}
		for _, ring := range poly {
			if len(ring) < 3 {
				return &GeometryError{RegionID: r.ID, Reason: "ring with fewer than 3 vertices"}
			}
		}
	}
	return nil
}

// Filter performs the spatial join: for each event it determines which
// region, if any, contains the event point, and returns one association per
// event in input order. Events outside every region get an empty RegionID.
//
// Both datasets must already be expressed in the same CRS; a mismatch is a
// ConfigurationError, raised before any geometric comparison. Use
// ReprojectEvents to reconcile beforehand. Regions are assumed
// non-overlapping; if they do overlap, the first containing region in
// catalog input order wins. A point exactly on a shared boundary edge is
// assigned to at most one region under the same rule.
//
// Filter is a pure transform: neither input slice is mutated.
func Filter(events []Event, regions []Region, eventCRS, regionCRS *CRS) ([]Association, error) {
	if eventCRS == nil {
		return nil, &ConfigurationError{Field: "event_crs", Reason: "missing spatial reference"}
	}
	if regionCRS == nil {
		return nil, &ConfigurationError{Field: "region_crs", Reason: "missing spatial reference"}
	}
	if !eventCRS.Equal(regionCRS) {
		return nil, &ConfigurationError{
			Field:  "crs",
			Reason: "event CRS " + eventCRS.Def() + " does not match region CRS " + regionCRS.Def(),
		}
	}

	tree := rtree.NewTree(25, 50)
	for i := range regions {
		if err := ValidateRegionGeometry(regions[i]); err != nil {
			return nil, err
		}
		tree.Insert(&regionEntry{
			Polygonal: regions[i].Geom,
			region:    &regions[i],
			pos:       i,
		})
	}

	associations := make([]Association, 0, len(events))
	for _, ev := range events {
		pt := ev.Point()

		candidates := tree.SearchIntersect(pt.Bounds())
		// SearchIntersect order is unspecified; restore catalog order so the
		// overlap tie-break stays deterministic.
		entries := make([]*regionEntry, len(candidates))
		for i, c := range candidates {
			entries[i] = c.(*regionEntry)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

		assoc := Association{Event: ev}
		for _, entry := range entries {
			if pt.Within(entry.region.Geom) != geom.Outside {
				assoc.RegionID = entry.region.ID
				break
			}
		}
		associations = append(associations, assoc)
	}
	return associations, nil
}

// Matched returns only the associations whose event fell inside a region.
// This is the public-facing "restrict to the target area" view of the join.
func Matched(associations []Association) []Association {
	out := make([]Association, 0, len(associations))
	for _, a := range associations {
		if a.Matched() {
			out = append(out, a)
		}
	}
	return out
}
