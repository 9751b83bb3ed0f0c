package models

// PredictionPoint is one year of the forecast series.
type PredictionPoint struct {
	Year           int     `json:"year"`
	PredictedPrice float64 `json:"predicted_price"`
}

// PredictionSeries is the per-listing forecast. It lives on the selection,
// not on the area dataset, and is replaced wholesale per listing.
type PredictionSeries struct {
	ListingID string            `json:"listing_id"`
	Points    []PredictionPoint `json:"points"`
}

// ChartDomain is the padded display range for the forecast chart.
type ChartDomain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
