package predict

import (
	"math"

	"propertylens/server/internal/models"
)

const (
	domainBufferRatio = 0.05
	domainBufferFloor = 5000.0
	domainRoundTo     = 1000.0
)

// DisplayDomain computes a padded y-axis range for a forecast chart. The
// series' [min, max] is buffered by 5% of its spread, never less than 5000,
// and both ends are rounded to the nearest thousand so axis labels land on
// round figures.
func DisplayDomain(points []models.PredictionPoint) *models.ChartDomain {
	if len(points) == 0 {
		return nil
	}

	min, max := points[0].PredictedPrice, points[0].PredictedPrice
	for _, point := range points[1:] {
		if point.PredictedPrice < min {
			min = point.PredictedPrice
		}
		if point.PredictedPrice > max {
			max = point.PredictedPrice
		}
	}

	buffer := (max - min) * domainBufferRatio
	if buffer < domainBufferFloor {
		buffer = domainBufferFloor
	}

	return &models.ChartDomain{
		Min: math.Round((min-buffer)/domainRoundTo) * domainRoundTo,
		Max: math.Round((max+buffer)/domainRoundTo) * domainRoundTo,
	}
}
