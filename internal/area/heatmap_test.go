package area

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertylens/server/internal/models"
)

var testCentre = &models.Location{Latitude: 51.501, Longitude: -0.1416, Locality: "Westminster"}

func TestBuildHeatmapIntensityBounds(t *testing.T) {
	transactions := []models.Transaction{
		{Price: 100000},
		{Price: 250000},
		{Price: 400000},
		{Price: 550000},
		{Price: 700000},
	}

	points := BuildHeatmap(testCentre, transactions)
	require.Len(t, points, 5)

	for _, p := range points {
		assert.GreaterOrEqual(t, p.Intensity, 0.1)
		assert.LessOrEqual(t, p.Intensity, 1.0)
	}

	// Cheapest and dearest sales pin the ends of the scale.
	assert.InDelta(t, 0.1, points[0].Intensity, 1e-9)
	assert.InDelta(t, 1.0, points[4].Intensity, 1e-9)
}

func TestBuildHeatmapSinglePrice(t *testing.T) {
	points := BuildHeatmap(testCentre, []models.Transaction{{Price: 300000}})
	require.Len(t, points, 1)
	assert.Equal(t, 0.5, points[0].Intensity)
}

func TestBuildHeatmapFlatPriceRange(t *testing.T) {
	transactions := []models.Transaction{
		{Price: 300000},
		{Price: 300000},
		{Price: 300000},
	}

	points := BuildHeatmap(testCentre, transactions)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Equal(t, 0.5, p.Intensity)
	}
}

func TestBuildHeatmapJitterStaysBounded(t *testing.T) {
	transactions := make([]models.Transaction, 200)
	for i := range transactions {
		transactions[i] = models.Transaction{Price: 100000 + float64(i)*1000}
	}

	points := BuildHeatmap(testCentre, transactions)
	require.Len(t, points, 200)

	for _, p := range points {
		assert.LessOrEqual(t, math.Abs(p.Lat-testCentre.Latitude), jitterDegrees)
		assert.LessOrEqual(t, math.Abs(p.Lng-testCentre.Longitude), jitterDegrees)
	}
}

func TestBuildHeatmapNoCentre(t *testing.T) {
	points := BuildHeatmap(nil, []models.Transaction{{Price: 300000}})
	assert.Nil(t, points)
}

func TestBuildHeatmapNoPricedTransactions(t *testing.T) {
	points := BuildHeatmap(testCentre, []models.Transaction{{Price: 0}, {Price: -1}})
	assert.Nil(t, points)
}

func TestHeatmapGeoJSON(t *testing.T) {
	points := []models.HeatmapPoint{
		{Lat: 51.5, Lng: -0.14, Intensity: 0.5},
		{Lat: 51.502, Lng: -0.142, Intensity: 1.0},
	}

	fc := HeatmapGeoJSON(points)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 0.5, fc.Features[0].Properties["intensity"])

	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"FeatureCollection"`)
}
