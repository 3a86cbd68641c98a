package domain

import "time"

// RegionCount is one row of the aggregate result joined back to the region
// catalog, in catalog order.
type RegionCount struct {
	RegionID string `json:"region_id"`
	Name     string `json:"name,omitempty"`
	Count    int    `json:"count"`
}

// RunReport summarizes one completed pipeline run. It is served over HTTP
// and published to the optional counts sink.
type RunReport struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	EventsTotal   int           `json:"events_total"`
	EventsMatched int           `json:"events_matched"`
	EventsOutside int           `json:"events_outside"`
	Regions       int           `json:"regions"`
	Counts        []RegionCount `json:"counts"`
}

// CountRows joins an aggregate result onto the region catalog, preserving
// catalog order and carrying region names along for display.
func CountRows(regions []Region, counts map[string]int) []RegionCount {
	rows := make([]RegionCount, 0, len(regions))
	for _, r := range regions {
		rows = append(rows, RegionCount{
			RegionID: r.ID,
			Name:     r.Name,
			Count:    counts[r.ID],
		})
	}
	return rows
}
