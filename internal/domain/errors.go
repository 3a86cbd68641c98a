package domain

import "fmt"

// The pipeline is a one-shot batch computation: data errors halt the run and
// name the offending record or region, rather than skipping it. Silent
// partial results would corrupt downstream counts.

// ConfigurationError signals a missing or inconsistent dataset-level setting,
// such as an absent spatial reference or a required field that was not found.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// GeometryError signals malformed region geometry (nil, empty, or a ring
// with fewer than three vertices).
type GeometryError struct {
	RegionID string
	Reason   string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error: region %q: %s", e.RegionID, e.Reason)
}

// ReferentialIntegrityError signals an association that references a region
// absent from the region catalog. It should never occur when associations
// were derived from the same catalog, but is checked defensively.
type ReferentialIntegrityError struct {
	RegionID string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referential integrity error: unknown region %q", e.RegionID)
}
