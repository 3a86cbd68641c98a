// Package boundary loads administrative region polygons from standard
// geometry-exchange files: ESRI shapefiles or GeoJSON FeatureCollections.
package boundary

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/quake-region-etl/internal/config"
	"github.com/couchcryptid/quake-region-etl/internal/domain"
)

// Loader reads a boundary dataset into domain regions. It implements
// pipeline.RegionSource.
type Loader struct {
	path      string
	format    string
	idField   string
	nameField string
	areaField string
	crsDef    string
	logger    *slog.Logger
}

// NewLoader creates a boundary loader from configuration.
func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	return &Loader{
		path:      cfg.BoundaryPath,
		format:    cfg.BoundaryFormat,
		idField:   cfg.BoundaryIDField,
		nameField: cfg.BoundaryNameField,
		areaField: cfg.BoundaryAreaField,
		crsDef:    cfg.RegionCRS,
		logger:    logger,
	}
}

// LoadRegions reads the boundary file and returns the region catalog with
// its spatial reference. Regions keep file order, which is also the overlap
// tie-break order of the spatial join.
//
// The spatial reference comes from, in precedence order: the REGION_CRS
// override, the shapefile's .prj sidecar, then WGS84 (which RFC 7946
// mandates for GeoJSON).
func (l *Loader) LoadRegions(ctx context.Context) ([]domain.Region, *domain.CRS, error) {
	var (
		regions []domain.Region
		crs     *domain.CRS
		err     error
	)
	switch l.resolveFormat() {
	case "shapefile":
		regions, crs, err = l.loadShapefile(ctx)
	case "geojson":
		crs, err = l.configuredCRS()
		if err == nil {
			regions, err = l.loadGeoJSON(ctx)
		}
	default:
		return nil, nil, &domain.ConfigurationError{
			Field:  "boundary_format",
			Reason: fmt.Sprintf("cannot infer format from %q; set BOUNDARY_FORMAT", l.path),
		}
	}
	if err != nil {
		return nil, nil, err
	}

	for _, r := range regions {
		if err := domain.ValidateRegionGeometry(r); err != nil {
			return nil, nil, err
		}
	}

	l.logger.Info("boundary catalog loaded", "path", l.path, "regions", len(regions), "crs", crs.Def())
	return regions, crs, nil
}

// configuredCRS resolves the spatial reference when the file format carries
// none of its own: the REGION_CRS override if set, else WGS84.
func (l *Loader) configuredCRS() (*domain.CRS, error) {
	if l.crsDef != "" {
		return domain.ParseCRS(l.crsDef)
	}
	return domain.ParseCRS(domain.WGS84)
}

func (l *Loader) resolveFormat() string {
	if l.format != "" {
		return l.format
	}
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".shp":
		return "shapefile"
	case ".geojson", ".json":
		return "geojson"
	default:
		return ""
	}
}
