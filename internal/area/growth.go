package area

import (
	"fmt"
	"math"

	"propertylens/server/internal/models"
)

// InsufficientData is reported when a growth metric cannot be derived. It is
// a distinct no-result state, not a failure.
const InsufficientData = "insufficient data"

// ComputeGrowth derives the growth metrics from transactions sorted date
// descending: overall growth between the earliest and latest sale, the
// annualized return over that span, and the min/max price range. Metrics
// that cannot be computed report InsufficientData; the derivation never
// produces NaN or infinity.
func ComputeGrowth(transactions []models.Transaction) models.PriceGrowth {
	growth := models.PriceGrowth{
		GrowthPct:           InsufficientData,
		AnnualizedReturnPct: InsufficientData,
	}
	if len(transactions) == 0 {
		return growth
	}

	minPrice, maxPrice := transactions[0].Price, transactions[0].Price
	for _, t := range transactions[1:] {
		if t.Price < minPrice {
			minPrice = t.Price
		}
		if t.Price > maxPrice {
			maxPrice = t.Price
		}
	}
	growth.PriceRange = models.PriceRange{Min: minPrice, Max: maxPrice}

	latest := transactions[0]
	earliest := transactions[len(transactions)-1]
	if earliest.Price <= 0 {
		return growth
	}

	growth.GrowthPct = formatSignedPct((latest.Price - earliest.Price) / earliest.Price * 100)

	latestDate, okLatest := latest.ParsedDate()
	earliestDate, okEarliest := earliest.ParsedDate()
	if !okLatest || !okEarliest {
		return growth
	}

	// A zero-day span reports InsufficientData rather than extrapolating
	// an annual rate from same-day sales.
	days := latestDate.Sub(earliestDate).Hours() / 24
	if days <= 0 {
		return growth
	}

	annualized := (math.Pow(latest.Price/earliest.Price, 365/days) - 1) * 100
	if math.IsNaN(annualized) || math.IsInf(annualized, 0) {
		return growth
	}
	growth.AnnualizedReturnPct = formatSignedPct(annualized)

	return growth
}

func formatSignedPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}
