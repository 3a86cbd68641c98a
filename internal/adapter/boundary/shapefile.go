package boundary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// loadShapefile decodes regions row by row from an ESRI shapefile, reading
// only the attribute fields the catalog needs, and resolves the dataset's
// spatial reference.
func (l *Loader) loadShapefile(ctx context.Context) ([]domain.Region, *domain.CRS, error) {
	dec, err := shp.NewDecoder(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open shapefile %s: %w", l.path, err)
	}
	defer dec.Close()

	crs, err := l.shapefileCRS(dec)
	if err != nil {
		return nil, nil, err
	}

	fieldNames := []string{l.idField}
	if l.nameField != "" {
		fieldNames = append(fieldNames, l.nameField)
	}
	if l.areaField != "" {
		fieldNames = append(fieldNames, l.areaField)
	}

	var regions []domain.Region
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		g, fields, more := dec.DecodeRowFields(fieldNames...)
		if !more {
			break
		}

		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, nil, &domain.GeometryError{
				RegionID: fields[l.idField],
				Reason:   fmt.Sprintf("shapefile row %d is %T, want polygonal", len(regions), g),
			}
		}

		id := strings.TrimSpace(fields[l.idField])
		if id == "" {
			return nil, nil, &domain.ConfigurationError{
				Field:  l.idField,
				Reason: fmt.Sprintf("blank region id at shapefile row %d", len(regions)),
			}
		}

		regions = append(regions, domain.Region{
			ID:      id,
			Name:    strings.TrimSpace(fields[l.nameField]),
			AreaKm2: parseAreaField(fields[l.areaField]),
			Geom:    poly,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, nil, fmt.Errorf("decode shapefile %s: %w", l.path, err)
	}
	return regions, crs, nil
}

// shapefileCRS resolves the dataset's spatial reference: the REGION_CRS
// override wins, then the .prj sidecar, then WGS84 when no .prj exists.
func (l *Loader) shapefileCRS(dec *shp.Decoder) (*domain.CRS, error) {
	if l.crsDef != "" {
		return domain.ParseCRS(l.crsDef)
	}

	prjPath := strings.TrimSuffix(l.path, filepath.Ext(l.path)) + ".prj"
	wkt, readErr := os.ReadFile(prjPath)
	if readErr != nil {
		l.logger.Warn("shapefile has no readable .prj, assuming WGS84", "path", l.path)
		return domain.ParseCRS(domain.WGS84)
	}

	sr, err := dec.SR()
	if err != nil {
		return nil, &domain.ConfigurationError{
			Field:  "region_crs",
			Reason: fmt.Sprintf("parse %s: %v", prjPath, err),
		}
	}
	return domain.CRSFromSR(string(wkt), sr)
}

func parseAreaField(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
