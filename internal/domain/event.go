package domain

import (
	"time"

	"github.com/ctessum/geom"
)

// RawCatalogRecord represents one row of a USGS earthquake catalog CSV,
// keyed by the standard column names. All values are kept as strings until
// validated; magType, net and type vary by reporting network.
type RawCatalogRecord struct {
	Time      string `json:"time"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Depth     string `json:"depth"` // km
	Mag       string `json:"mag"`
	MagType   string `json:"magType"` // e.g. "ml", "mb", "mw"
	Net       string `json:"net"`     // reporting network code
	ID        string `json:"id"`      // catalog event id, e.g. "us7000abcd"
	Updated   string `json:"updated"`
	Place     string `json:"place"` // free-text label, e.g. "12km SSE of Ridgecrest, CA"
	Type      string `json:"type"`  // "earthquake", "quarry blast", ...
}

// Geo represents a latitude/longitude coordinate pair in the event dataset's
// spatial reference.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is the domain-rich representation of a single seismic event after
// parsing. Events are immutable once ingested; enrichment and reprojection
// return copies.
type Event struct {
	ID             string    `json:"id"`
	EventType      string    `json:"type"`
	Geo            Geo       `json:"geo"`
	DepthKm        float64   `json:"depth_km"`
	Magnitude      float64   `json:"magnitude"`
	MagType        string    `json:"mag_type,omitempty"`
	MagnitudeClass string    `json:"magnitude_class,omitempty"`
	EventTime      time.Time `json:"event_time"`
	Place          string    `json:"place,omitempty"`
	Net            string    `json:"net,omitempty"`
	DayBucket      string    `json:"day_bucket,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Point returns the event location as a geometry point in (lon, lat) axis
// order, matching the convention of the boundary datasets.
func (e Event) Point() geom.Point {
	return geom.Point{X: e.Geo.Lon, Y: e.Geo.Lat}
}

// Region is one administrative unit from the boundary dataset.
type Region struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	AreaKm2 float64 `json:"area_km2,omitempty"`

	Geom geom.Polygonal `json:"-"`
}

// Association relates an event to the region containing it. It is a derived
// side table: the Event value itself is never mutated by the spatial join.
// RegionID is empty for events outside every region.
type Association struct {
	Event    Event  `json:"event"`
	RegionID string `json:"region_id,omitempty"`
}

// Matched reports whether the association's event fell inside a region.
func (a Association) Matched() bool { return a.RegionID != "" }
