// Package geometry handles AOI loading and scene-coverage math. All
// geometries are WGS84 lon/lat GeoJSON.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"

	"github.com/peterstace/simplefeatures/geom"
)

// kmPerDegree is the meridian arc length of one degree at the equator.
const kmPerDegree = 111.32

// AOI is a loaded area of interest: the geometry itself, its GeoJSON
// encoding for provider payloads, and its approximate area.
type AOI struct {
	Name     string
	Geom     geom.Geometry
	GeoJSON  json.RawMessage
	AreaSqKm float64
}

// LoadAOI reads a GeoJSON file (a bare geometry, a Feature, or a
// FeatureCollection) and returns the union of its geometries.
func LoadAOI(path, name string) (*AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AOI file: %w", err)
	}
	g, err := parseGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AOI %s: %w", path, err)
	}
	encoded, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode AOI geometry: %w", err)
	}
	return &AOI{
		Name:     name,
		Geom:     g,
		GeoJSON:  encoded,
		AreaSqKm: AreaSqKm(g),
	}, nil
}

// parseGeoJSON accepts the three GeoJSON top-level shapes and reduces
// them to a single geometry.
func parseGeoJSON(data []byte) (geom.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return geom.Geometry{}, err
	}

	switch probe.Type {
	case "FeatureCollection":
		var fc geom.GeoJSONFeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return geom.Geometry{}, err
		}
		if len(fc) == 0 {
			return geom.Geometry{}, fmt.Errorf("feature collection has no features")
		}
		union := fc[0].Geometry
		for _, f := range fc[1:] {
			var err error
			union, err = geom.Union(union, f.Geometry)
			if err != nil {
				return geom.Geometry{}, fmt.Errorf("failed to union features: %w", err)
			}
		}
		return union, nil
	case "Feature":
		var f geom.GeoJSONFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return geom.Geometry{}, err
		}
		return f.Geometry, nil
	default:
		return geom.UnmarshalGeoJSON(data)
	}
}

// Coverage returns the percentage (0-100) of the AOI's area that the
// scene footprint covers.
func Coverage(sceneGeoJSON json.RawMessage, aoi geom.Geometry) (float64, error) {
	footprint, err := geom.UnmarshalGeoJSON(sceneGeoJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to parse scene footprint: %w", err)
	}
	aoiArea := aoi.Area()
	if aoiArea == 0 {
		return 0, fmt.Errorf("AOI has zero area")
	}
	overlap, err := geom.Intersection(footprint, aoi)
	if err != nil {
		return 0, fmt.Errorf("failed to intersect footprint with AOI: %w", err)
	}
	return overlap.Area() / aoiArea * 100, nil
}

// AreaSqKm approximates the area of a lon/lat geometry in square
// kilometres, scaling square degrees by the latitude of the centroid.
// Adequate for the AOI sizes this tool orders (tens of km across).
func AreaSqKm(g geom.Geometry) float64 {
	lat := 0.0
	if xy, ok := g.Centroid().XY(); ok {
		lat = xy.Y
	}
	return g.Area() * kmPerDegree * kmPerDegree * math.Cos(lat*math.Pi/180)
}

var (
	aoiPrefixRe = regexp.MustCompile(`^(DrySpy_)?AOI_`)
	aoiSuffixRe = regexp.MustCompile(`(?i)_(central|north|south|east|west)$`)
)

// NormalizeAOIName strips the conventional AOI_ prefix and directional
// suffixes from a raw AOI label, so orders for the same site match in
// duplicate lookups.
func NormalizeAOIName(raw string) string {
	cleaned := aoiPrefixRe.ReplaceAllString(raw, "")
	return aoiSuffixRe.ReplaceAllString(cleaned, "")
}

// BatchFeature is one AOI from a batch-submit feature collection, with
// its ordering window read from the feature properties.
type BatchFeature struct {
	SiteID    string
	StartDate string
	EndDate   string
	Geom      geom.Geometry
	GeoJSON   json.RawMessage
	AreaSqKm  float64
}

// LoadBatchFeatures reads a GeoJSON FeatureCollection whose features
// carry site_id, start_date and end_date properties. Features missing a
// property are returned in the second slice with the reason, so the
// caller can report them without aborting the batch.
func LoadBatchFeatures(path string) ([]BatchFeature, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var fc geom.GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}

	var features []BatchFeature
	var skipped []string
	for i, f := range fc {
		siteID := propString(f.Properties, "site_id")
		start := propString(f.Properties, "start_date")
		end := propString(f.Properties, "end_date")
		if siteID == "" || start == "" || end == "" {
			skipped = append(skipped, fmt.Sprintf("feature %d: missing site_id/start_date/end_date", i))
			continue
		}
		encoded, err := f.Geometry.MarshalJSON()
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("feature %d (%s): %v", i, siteID, err))
			continue
		}
		features = append(features, BatchFeature{
			SiteID:    siteID,
			StartDate: start,
			EndDate:   end,
			Geom:      f.Geometry,
			GeoJSON:   encoded,
			AreaSqKm:  AreaSqKm(f.Geometry),
		})
	}
	return features, skipped, nil
}

func propString(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
