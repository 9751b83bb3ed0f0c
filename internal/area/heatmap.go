package area

import (
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"propertylens/server/internal/models"
)

// Jitter radius in degrees per axis, purely presentational declustering.
const jitterDegrees = 0.002

// Intensity bounds for heatmap points.
const (
	minIntensity = 0.1
	maxIntensity = 1.0
)

// BuildHeatmap derives one intensity point per priced transaction, scattered
// around the resolved postcode centre. Returns nil when the centre is
// unknown or no transaction carries a usable price. Intensity scales
// linearly between the cheapest and dearest sale; a flat price range sits at
// the midpoint.
func BuildHeatmap(center *models.Location, transactions []models.Transaction) []models.HeatmapPoint {
	if center == nil {
		return nil
	}

	var priced []models.Transaction
	for _, t := range transactions {
		if t.Price > 0 {
			priced = append(priced, t)
		}
	}
	if len(priced) == 0 {
		return nil
	}

	minPrice, maxPrice := priced[0].Price, priced[0].Price
	for _, t := range priced[1:] {
		if t.Price < minPrice {
			minPrice = t.Price
		}
		if t.Price > maxPrice {
			maxPrice = t.Price
		}
	}
	priceRange := maxPrice - minPrice

	centre := orb.Point{center.Longitude, center.Latitude}
	points := make([]models.HeatmapPoint, 0, len(priced))
	for _, t := range priced {
		intensity := 0.5
		if priceRange > 0 {
			intensity = minIntensity + 0.9*(t.Price-minPrice)/priceRange
		}
		if intensity < minIntensity {
			intensity = minIntensity
		}
		if intensity > maxIntensity {
			intensity = maxIntensity
		}

		jittered := orb.Point{
			centre.Lon() + jitter(),
			centre.Lat() + jitter(),
		}
		points = append(points, models.HeatmapPoint{
			Lat:       jittered.Lat(),
			Lng:       jittered.Lon(),
			Intensity: intensity,
		})
	}
	return points
}

func jitter() float64 {
	return rand.Float64()*2*jitterDegrees - jitterDegrees
}

// HeatmapGeoJSON exports heatmap points as a FeatureCollection for map
// clients.
func HeatmapGeoJSON(points []models.HeatmapPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		feature := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
		feature.Properties = geojson.Properties{
			"intensity": p.Intensity,
		}
		fc.Append(feature)
	}
	return fc
}
