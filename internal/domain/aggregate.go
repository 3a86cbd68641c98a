package domain

// Aggregate counts associations grouped by region. The result has exactly
// one entry per region in allRegions, defaulting to 0 when no association
// references it, so downstream choropleth rendering shows empty regions too
// (left-join semantics against the full catalog). Associations with no
// region are excluded from counts.
//
// The output is deterministic under permutation of the association sequence;
// no iteration order is imposed on the returned map.
func Aggregate(associations []Association, allRegions []Region) (map[string]int, error) {
	counts := make(map[string]int, len(allRegions))
	for _, r := range allRegions {
		counts[r.ID] = 0
	}

	for _, a := range associations {
		if !a.Matched() {
			continue
		}
		if _, ok := counts[a.RegionID]; !ok {
			return nil, &ReferentialIntegrityError{RegionID: a.RegionID}
		}
		counts[a.RegionID]++
	}
	return counts, nil
}
