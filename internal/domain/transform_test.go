package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogHeader = "time,latitude,longitude,depth,mag,magType,nst,gap,dmin,rms,net,id,updated,place,type"

func TestParseCatalog(t *testing.T) {
	t.Run("standard USGS rows", func(t *testing.T) {
		csv := catalogHeader + "\n" +
			`2024-04-26T15:10:23.120Z,35.6895,139.6917,35.2,5.1,mb,,,,,us,us7000abcd,2024-04-26T16:00:00.000Z,"12km SSE of Ridgecrest, CA",earthquake` + "\n" +
			"2024-04-26T16:42:01.000Z,36.10,140.07,50.0,4.2,ml,,,,,jma,jma2024xyz,,near the coast,earthquake\n"

		events, err := ParseCatalog(strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, events, 2)

		first := events[0]
		assert.Equal(t, "us7000abcd", first.ID)
		assert.Equal(t, "earthquake", first.EventType)
		assert.Equal(t, 35.6895, first.Geo.Lat)
		assert.Equal(t, 139.6917, first.Geo.Lon)
		assert.Equal(t, 35.2, first.DepthKm)
		assert.Equal(t, 5.1, first.Magnitude)
		assert.Equal(t, "mb", first.MagType)
		assert.Equal(t, "12km SSE of Ridgecrest, CA", first.Place)
		assert.Equal(t, time.Date(2024, 4, 26, 15, 10, 23, 120_000_000, time.UTC), first.EventTime)

		assert.Equal(t, "jma2024xyz", events[1].ID)
	})

	t.Run("missing required column", func(t *testing.T) {
		csv := "time,longitude,mag\n2024-04-26T15:10:23Z,139.69,5.1\n"

		_, err := ParseCatalog(strings.NewReader(csv))
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "latitude", cfgErr.Field)
	})

	t.Run("unparseable coordinate halts the run", func(t *testing.T) {
		csv := catalogHeader + "\n" +
			"2024-04-26T15:10:23Z,not-a-number,139.69,10,5.1,mb,,,,,us,id1,,somewhere,earthquake\n"

		_, err := ParseCatalog(strings.NewReader(csv))
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "latitude", cfgErr.Field)
		assert.Contains(t, err.Error(), "row 2")
	})

	t.Run("out of range coordinate", func(t *testing.T) {
		csv := catalogHeader + "\n" +
			"2024-04-26T15:10:23Z,95.0,139.69,10,5.1,mb,,,,,us,id1,,somewhere,earthquake\n"

		_, err := ParseCatalog(strings.NewReader(csv))
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "coordinates", cfgErr.Field)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseCatalog(strings.NewReader(""))
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestParseCatalogRecord(t *testing.T) {
	t.Run("id falls back to deterministic hash", func(t *testing.T) {
		rec := RawCatalogRecord{
			Time:      "2024-04-26T15:10:23Z",
			Latitude:  "35.68",
			Longitude: "139.69",
			Mag:       "5.1",
			Net:       "us",
		}

		ev1, err := ParseCatalogRecord(rec)
		require.NoError(t, err)
		ev2, err := ParseCatalogRecord(rec)
		require.NoError(t, err)

		assert.NotEmpty(t, ev1.ID)
		assert.True(t, strings.HasPrefix(ev1.ID, "us-"))
		assert.Equal(t, ev1.ID, ev2.ID)
	})

	t.Run("blank magnitude is zero, not an error", func(t *testing.T) {
		ev, err := ParseCatalogRecord(RawCatalogRecord{
			Time: "2024-04-26T15:10:23Z", Latitude: "1", Longitude: "2",
		})
		require.NoError(t, err)
		assert.Zero(t, ev.Magnitude)
		assert.Equal(t, "earthquake", ev.EventType)
	})

	t.Run("unparseable time degrades to zero time", func(t *testing.T) {
		ev, err := ParseCatalogRecord(RawCatalogRecord{
			Time: "1510", Latitude: "1", Longitude: "2",
		})
		require.NoError(t, err)
		assert.True(t, ev.EventTime.IsZero())
	})
}

func TestEnrichEvent(t *testing.T) {
	frozen := time.Date(2024, 4, 27, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	ev := EnrichEvent(Event{
		Magnitude: 5.4,
		EventTime: time.Date(2024, 4, 26, 15, 10, 23, 0, time.UTC),
	})

	assert.Equal(t, "moderate", ev.MagnitudeClass)
	assert.Equal(t, "2024-04-26", ev.DayBucket)
	assert.Equal(t, frozen, ev.ProcessedAt)
}

func TestMagnitudeClass(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		expected  string
	}{
		{"unmeasured", 0, ""},
		{"negative", -0.3, ""},
		{"micro", 1.2, "micro"},
		{"minor", 3.9, "minor"},
		{"light", 4.5, "light"},
		{"moderate", 5.0, "moderate"},
		{"strong", 6.7, "strong"},
		{"major", 7.8, "major"},
		{"great", 9.1, "great"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, magnitudeClass(tt.magnitude))
		})
	}
}
