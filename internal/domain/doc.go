// Package domain models USGS earthquake catalog events, administrative
// boundary regions, and the spatial join between them.
//
// # Data Source
//
// Events come from the USGS FDSN event web service CSV catalog
// (https://earthquake.usgs.gov/fdsnws/event/1/), whose columns are
//
//	time,latitude,longitude,depth,mag,magType,nst,gap,dmin,rms,net,id,
//	updated,place,horizontalError,depthError,magError,magNst,status,
//	locationSource,magSource,type
//
// Only the columns named in [RawCatalogRecord] are consumed; the rest are
// quality metadata this pipeline does not use. Timestamps are RFC 3339 UTC
// with millisecond precision; depth is kilometers; coordinates are WGS-84
// decimal degrees in (latitude, longitude) column order, while all geometry
// here uses (lon, lat) = (X, Y) axis order.
//
// Boundary regions come from standard geometry-exchange files (ESRI
// shapefile or GeoJSON FeatureCollection); see the boundary adapter.
//
// # Spatial references
//
// Every geometric dataset carries a [CRS] tag. The join refuses mismatched
// references outright; [ReprojectEvents] is the explicit conversion step.
// Comparing geometries under mismatched references yields coordinates that
// are numerically valid and geographically meaningless, which is why the
// mismatch is an error and never a warning.
//
// # The join and the counts
//
// [Filter] produces a side table of (event, region id) associations by
// point-in-polygon containment, leaving event values untouched. [Aggregate]
// folds those associations into one count per catalog region, zero-filling
// regions no event touched, so a choropleth shows empty regions instead of
// silently dropping them.
//
// # Magnitude classes
//
// Magnitudes map to the conventional Richter band labels:
//
//	<2 micro | <4 minor | <5 light | <6 moderate | <7 strong | <8 major | ≥8 great
//
// A non-positive magnitude means unmeasured and yields no class label.
//
// # ID Generation
//
// Catalog rows normally carry a network-assigned id ("us7000abcd"). Rows
// without one get a deterministic SHA-256 hash of net|lat|lon|time|mag, so
// re-running the pipeline over the same dataset reproduces the same ids.
// See [generateID].
package domain
