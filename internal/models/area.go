package models

import "time"

// Transaction is one historical sale for the searched postcode, as returned
// by the transactions endpoint. Date is the wire value; ParsedDate reports
// whether it is usable for the growth derivation.
type Transaction struct {
	Price        float64 `json:"price"`
	Date         string  `json:"date"`
	Address      string  `json:"address"`
	PropertyType string  `json:"property_type"`
	NewBuild     bool    `json:"new_build"`
}

// ParsedDate accepts the date layouts the upstream has been seen to emit.
func (t *Transaction) ParsedDate() (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04"} {
		if ts, err := time.Parse(layout, t.Date); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DemographicTopic is one observation block keyed by topic name in the
// demographics map. Value is passed through untyped since topics mix counts,
// percentages and labels.
type DemographicTopic struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Period string `json:"period"`
}

// CrimeSummary is the aggregate crime picture for the searched area.
type CrimeSummary struct {
	ByCategory map[string]int `json:"byCategory"`
	ByOutcome  map[string]int `json:"byOutcome"`
	Total      int            `json:"total"`
}

// PriceRange is min/max over all transaction prices.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceGrowth is derived strictly from the transaction list and replaced
// wholesale whenever the list changes. The percentage fields hold formatted
// values with an explicit sign, or "insufficient data" when the derivation
// cannot be computed.
type PriceGrowth struct {
	GrowthPct           string     `json:"growth_pct"`
	AnnualizedReturnPct string     `json:"annualized_return_pct"`
	PriceRange          PriceRange `json:"price_range"`
}

// HeatmapPoint is one jittered intensity sample derived from a transaction.
type HeatmapPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

// AreaDataset bundles the three area fetches for one postcode plus the
// metrics derived from them. Each section carries its own error slot; a nil
// error with empty data means the fetch genuinely returned nothing.
type AreaDataset struct {
	Transactions    []Transaction `json:"transactions"`
	TransactionsErr *SectionError `json:"transactions_error,omitempty"`

	Demographics    map[string]DemographicTopic `json:"demographics"`
	DemographicsErr *SectionError               `json:"demographics_error,omitempty"`
	FetchNotes      []string                    `json:"fetch_notes,omitempty"`

	Crime    *CrimeSummary `json:"crime"`
	CrimeErr *SectionError `json:"crime_error,omitempty"`

	PriceGrowth PriceGrowth    `json:"price_growth"`
	Heatmap     []HeatmapPoint `json:"heatmap"`
}

// Failed reports whether every sub-fetch failed. A single surviving section
// keeps the dataset usable.
func (d *AreaDataset) Failed() bool {
	return d.TransactionsErr != nil && d.DemographicsErr != nil && d.CrimeErr != nil
}
