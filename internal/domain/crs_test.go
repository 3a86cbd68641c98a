package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCRS(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		crs, err := ParseCRS(WGS84)
		require.NoError(t, err)
		assert.Equal(t, WGS84, crs.Def())
		assert.NotNil(t, crs.SR())
	})

	t.Run("whitespace is normalized for identity", func(t *testing.T) {
		a := mustCRS(t, "+proj=longlat  +datum=WGS84   +no_defs")
		b := mustCRS(t, WGS84)
		assert.True(t, a.Equal(b))
	})

	t.Run("different projections are not equal", func(t *testing.T) {
		a := mustCRS(t, WGS84)
		b := mustCRS(t, "+proj=merc +lon_0=0 +datum=WGS84")
		assert.False(t, a.Equal(b))
		assert.False(t, a.Equal(nil))
	})

	t.Run("empty definition is a configuration error", func(t *testing.T) {
		_, err := ParseCRS("   ")
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "crs", cfgErr.Field)
	})
}

func TestCRSFromSR(t *testing.T) {
	parsed := mustCRS(t, WGS84)

	t.Run("wraps a parsed reference under its own identity", func(t *testing.T) {
		crs, err := CRSFromSR(`GEOGCS["GCS_WGS_1984"]`, parsed.SR())
		require.NoError(t, err)
		assert.Equal(t, `GEOGCS["GCS_WGS_1984"]`, crs.Def())
		assert.False(t, crs.Equal(parsed), "dataset-attached reference never equals a proj4 definition")
	})

	t.Run("empty identity is a configuration error", func(t *testing.T) {
		_, err := CRSFromSR("  ", parsed.SR())
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("nil reference is a configuration error", func(t *testing.T) {
		_, err := CRSFromSR(`GEOGCS["X"]`, nil)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestReprojectEvents(t *testing.T) {
	wgs84 := mustCRS(t, WGS84)
	merc := mustCRS(t, "+proj=merc +lon_0=0 +datum=WGS84")

	t.Run("equal CRS returns an unchanged copy", func(t *testing.T) {
		events := []Event{eventAt("a", 139.69, 35.68)}

		out, err := ReprojectEvents(events, wgs84, wgs84)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, events[0], out[0])

		// Mutating the copy must not touch the original.
		out[0].Geo.Lat = 0
		assert.Equal(t, 35.68, events[0].Geo.Lat)
	})

	t.Run("longlat to mercator", func(t *testing.T) {
		events := []Event{
			eventAt("origin", 0, 0),
			eventAt("tokyo", 139.6917, 35.6895),
		}

		out, err := ReprojectEvents(events, wgs84, merc)
		require.NoError(t, err)
		require.Len(t, out, 2)

		assert.InDelta(t, 0, out[0].Geo.Lon, 1e-6)
		assert.InDelta(t, 0, out[0].Geo.Lat, 1e-6)

		// Projected coordinates are meters; Tokyo sits millions of meters
		// east and north of the origin.
		assert.Greater(t, out[1].Geo.Lon, 1e7)
		assert.Greater(t, out[1].Geo.Lat, 1e6)

		// Original slice untouched.
		assert.Equal(t, 139.6917, events[1].Geo.Lon)
	})

	t.Run("missing CRS", func(t *testing.T) {
		_, err := ReprojectEvents(nil, nil, wgs84)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)

		_, err = ReprojectEvents(nil, wgs84, nil)
		require.ErrorAs(t, err, &cfgErr)
	})
}
