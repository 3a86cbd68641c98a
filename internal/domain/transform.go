package domain

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// requiredCatalogColumns are the CSV columns an event record cannot be
// built without. Magnitude may legitimately be blank (unmeasured), but a
// record without coordinates has no place in a spatial join.
var requiredCatalogColumns = []string{"time", "latitude", "longitude"}

// ParseCatalog reads a USGS-format earthquake catalog CSV and returns one
// Event per data row. A header row is required; a missing required column
// or an unparseable coordinate is a ConfigurationError naming the field,
// and halts the parse.
func ParseCatalog(r io.Reader) ([]Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // place labels may contain quoted commas; trust the header

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog csv: %w", err)
	}
	if len(rows) < 1 {
		return nil, &ConfigurationError{Field: "catalog", Reason: "no header row"}
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredCatalogColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, &ConfigurationError{Field: col, Reason: "required catalog column missing"}
		}
	}

	events := make([]Event, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := RawCatalogRecord{
			Time:      cell(row, colIdx, "time"),
			Latitude:  cell(row, colIdx, "latitude"),
			Longitude: cell(row, colIdx, "longitude"),
			Depth:     cell(row, colIdx, "depth"),
			Mag:       cell(row, colIdx, "mag"),
			MagType:   cell(row, colIdx, "magType"),
			Net:       cell(row, colIdx, "net"),
			ID:        cell(row, colIdx, "id"),
			Place:     cell(row, colIdx, "place"),
			Type:      cell(row, colIdx, "type"),
		}
		ev, err := ParseCatalogRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: %w", n+2, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func cell(row []string, colIdx map[string]int, name string) string {
	i, ok := colIdx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseCatalogRecord converts a raw catalog row into an Event. Coordinates
// are mandatory and must parse; everything else degrades to zero values.
func ParseCatalogRecord(rec RawCatalogRecord) (Event, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(rec.Latitude), 64)
	if err != nil {
		return Event{}, &ConfigurationError{Field: "latitude", Reason: fmt.Sprintf("unparseable value %q", rec.Latitude)}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(rec.Longitude), 64)
	if err != nil {
		return Event{}, &ConfigurationError{Field: "longitude", Reason: fmt.Sprintf("unparseable value %q", rec.Longitude)}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Event{}, &ConfigurationError{
			Field:  "coordinates",
			Reason: fmt.Sprintf("out of range: lat=%g lon=%g", lat, lon),
		}
	}

	magnitude := parseFloatOrZero(rec.Mag)
	eventTime := parseCatalogTime(rec.Time)

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = generateID(rec.Net, lat, lon, rec.Time, magnitude)
	}

	eventType := strings.TrimSpace(rec.Type)
	if eventType == "" {
		eventType = "earthquake"
	}

	return Event{
		ID:        id,
		EventType: eventType,
		Geo:       Geo{Lat: lat, Lon: lon},
		DepthKm:   parseFloatOrZero(rec.Depth),
		Magnitude: magnitude,
		MagType:   strings.ToLower(strings.TrimSpace(rec.MagType)),
		EventTime: eventTime,
		Place:     strings.TrimSpace(rec.Place),
		Net:       strings.TrimSpace(rec.Net),
	}, nil
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseCatalogTime parses the catalog's RFC 3339 timestamp (the USGS feed
// uses millisecond precision with a Z suffix). Returns zero time on failure.
func parseCatalogTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// generateID produces a deterministic ID from the record's key fields, used
// when the catalog row carries no id. Deterministic IDs keep re-runs over
// the same dataset idempotent for downstream consumers.
func generateID(net string, lat, lon float64, timeStr string, magnitude float64) string {
	input := fmt.Sprintf("%s|%.4f|%.4f|%s|%g", net, lat, lon, timeStr, magnitude)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if net == "" {
		return short
	}
	return net + "-" + short
}

// EnrichEvent derives presentation fields from a parsed event: the magnitude
// class label, the UTC day bucket, and the processing timestamp.
func EnrichEvent(event Event) Event {
	event.MagnitudeClass = magnitudeClass(event.Magnitude)
	event.DayBucket = deriveDayBucket(event.EventTime)
	event.ProcessedAt = clock.Now()
	return event
}

// magnitudeClass maps a magnitude to the conventional Richter band label.
// Returns "" for non-positive magnitudes (unmeasured or sentinel values).
func magnitudeClass(magnitude float64) string {
	switch {
	case magnitude <= 0:
		return ""
	case magnitude < 2:
		return "micro"
	case magnitude < 4:
		return "minor"
	case magnitude < 5:
		return "light"
	case magnitude < 6:
		return "moderate"
	case magnitude < 7:
		return "strong"
	case magnitude < 8:
		return "major"
	default:
		return "great"
	}
}

// deriveDayBucket truncates the event time to its UTC calendar day.
// Returns "" if the input is zero.
func deriveDayBucket(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
