// Package domain models gridded atmospheric composition data from the
// Copernicus Atmosphere Monitoring Service (CAMS).
//
// # Data Source
//
// Grids come from CAMS global reanalysis or forecast products downloaded from
// the Atmosphere Data Store (https://ads.atmosphere.copernicus.eu/) as NetCDF.
// The netcdf adapter resolves the configured variable names and hands the core
// a [GridSource]: one 2-D array per gas plus the latitude and longitude vectors.
//
// # CAMS Variable Conventions
//
// Default variable names and their meaning:
//
//	tcco   total column carbon monoxide        kg m**-2   -> CO
//	tcno2  total column nitrogen dioxide       kg m**-2   -> NO2
//	gtco3  GEMS total column ozone             kg m**-2   -> O3
//	tcso2  total column sulphur dioxide        kg m**-2   -> SO2
//
// Gas variables are shaped (time, latitude, longitude). Only the first time
// step is ingested. Latitude runs north to south (90 .. -90) and longitude
// 0 .. 360 in most CAMS products; neither is canonicalized.
//
// # Missing Values
//
// Packed variables carry scale_factor/add_offset and a _FillValue. The reader
// unpacks and replaces fill values with NaN before ingestion. Any cell where a
// single gas is NaN or infinite is dropped entirely by [Ingest].
//
// # Composite Score
//
// Each gas value is normalized by that gas's global maximum, and the composite
// is the arithmetic mean of the four normalized scores, so it lies in [0, 1].
// A gas whose maximum is not positive contributes 0. See [Score].
//
// # Place Names
//
// Display names come from reverse geocoding through [PlaceResolver]. Cells
// without a match (most of the ocean) get a synthesized name such as
// "Ocean (Lat:12.50, Lon:-30.25)". See [FallbackPlaceName].
package domain
