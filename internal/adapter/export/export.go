// Package export serializes pipeline results to geometry-exchange files:
// a GeoJSON point set of matched events, a GeoJSON choropleth of per-region
// counts, and optionally the same counts as a shapefile with an attribute
// table.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/quake-region-etl/internal/config"
	"github.com/couchcryptid/quake-region-etl/internal/domain"
)

const (
	eventsFile     = "events.geojson"
	choroplethFile = "region_counts.geojson"
	countsShpFile  = "region_counts.shp"
)

// Writer writes result artifacts into the output directory. It implements
// pipeline.Exporter.
type Writer struct {
	outputDir      string
	writeShapefile bool
	logger         *slog.Logger
}

// NewWriter creates an artifact writer from configuration.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return &Writer{
		outputDir:      cfg.OutputDir,
		writeShapefile: cfg.ExportShapefile,
		logger:         logger,
	}
}

// Export writes all artifacts for one pipeline run. GeoJSON files are
// written atomically (temp file + rename) so a crash mid-run never leaves a
// truncated artifact where a consumer polls for one.
func (w *Writer) Export(ctx context.Context, matched []domain.Association, regions []domain.Region, counts map[string]int) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	eventsPath := filepath.Join(w.outputDir, eventsFile)
	if err := writeJSONAtomic(eventsPath, eventFeatureCollection(matched)); err != nil {
		return fmt.Errorf("export events: %w", err)
	}
	w.logger.Info("wrote event artifact", "path", eventsPath, "events", len(matched))

	fc, err := choroplethFeatureCollection(regions, counts)
	if err != nil {
		return err
	}
	choroplethPath := filepath.Join(w.outputDir, choroplethFile)
	if err := writeJSONAtomic(choroplethPath, fc); err != nil {
		return fmt.Errorf("export choropleth: %w", err)
	}
	w.logger.Info("wrote choropleth artifact", "path", choroplethPath, "regions", len(regions))

	if !w.writeShapefile {
		return nil
	}
	shpPath := filepath.Join(w.outputDir, countsShpFile)
	if err := writeCountsShapefile(shpPath, regions, counts); err != nil {
		return fmt.Errorf("export counts shapefile: %w", err)
	}
	w.logger.Info("wrote counts shapefile", "path", shpPath)
	return nil
}
