package models

import "time"

// SessionStatus is the coarse lifecycle of the current search.
type SessionStatus string

const (
	StatusIdle        SessionStatus = "idle"
	StatusGeocoding   SessionStatus = "geocoding"
	StatusStreaming   SessionStatus = "streaming"
	StatusAggregating SessionStatus = "aggregating"
	StatusReady       SessionStatus = "ready"
	StatusFailed      SessionStatus = "failed"
)

// SelectionMode says what the detail view is focused on.
type SelectionMode string

const (
	SelectionNone    SelectionMode = "none"
	SelectionListing SelectionMode = "listing"
	SelectionArea    SelectionMode = "area_summary"
)

// Selection is the current detail focus. ListingID is set only in listing mode.
type Selection struct {
	Mode      SelectionMode `json:"mode"`
	ListingID string        `json:"listing_id,omitempty"`
}

// SectionState is the rendering state of one data section. Every section is
// in exactly one of these at all times.
type SectionState string

const (
	SectionIdle    SectionState = "idle"
	SectionLoading SectionState = "loading"
	SectionData    SectionState = "data"
	SectionEmpty   SectionState = "empty"
	SectionFailed  SectionState = "error"
)

// Section pairs a state with the message shown in the error case.
type Section struct {
	State SectionState `json:"state"`
	Error string       `json:"error,omitempty"`
}

// Sections tracks the five data sections of the view.
type Sections struct {
	Listings     Section `json:"listings"`
	Transactions Section `json:"transactions"`
	Demographics Section `json:"demographics"`
	Crime        Section `json:"crime"`
	Prediction   Section `json:"prediction"`
}

// ViewState is an immutable snapshot of the whole session, republished on
// every change. Consumers must never mutate one; the controller hands out
// deep copies.
type ViewState struct {
	SessionID  string        `json:"session_id"`
	Generation uint64        `json:"generation"`
	Status     SessionStatus `json:"status"`
	Postcode   string        `json:"postcode"`

	Location *Location       `json:"location,omitempty"`
	Listings []ListingRecord `json:"listings"`
	Area     *AreaDataset    `json:"area,omitempty"`

	Selection   Selection         `json:"selection"`
	Prediction  *PredictionSeries `json:"prediction,omitempty"`
	ChartDomain *ChartDomain      `json:"chart_domain,omitempty"`

	Sections  Sections  `json:"sections"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (v *ViewState) Clone() *ViewState {
	out := *v

	if v.Location != nil {
		loc := *v.Location
		out.Location = &loc
	}
	if v.Listings != nil {
		out.Listings = make([]ListingRecord, len(v.Listings))
		copy(out.Listings, v.Listings)
		for i := range out.Listings {
			if v.Listings[i].ImageURLs != nil {
				out.Listings[i].ImageURLs = append([]string(nil), v.Listings[i].ImageURLs...)
			}
		}
	}
	if v.Area != nil {
		out.Area = v.Area.clone()
	}
	if v.Prediction != nil {
		pred := *v.Prediction
		pred.Points = append([]PredictionPoint(nil), v.Prediction.Points...)
		out.Prediction = &pred
	}
	if v.ChartDomain != nil {
		dom := *v.ChartDomain
		out.ChartDomain = &dom
	}
	return &out
}

func (d *AreaDataset) clone() *AreaDataset {
	out := *d
	if d.Transactions != nil {
		out.Transactions = append([]Transaction(nil), d.Transactions...)
	}
	if d.Demographics != nil {
		out.Demographics = make(map[string]DemographicTopic, len(d.Demographics))
		for k, v := range d.Demographics {
			out.Demographics[k] = v
		}
	}
	if d.FetchNotes != nil {
		out.FetchNotes = append([]string(nil), d.FetchNotes...)
	}
	if d.Crime != nil {
		crime := *d.Crime
		crime.ByCategory = copyCounts(d.Crime.ByCategory)
		crime.ByOutcome = copyCounts(d.Crime.ByOutcome)
		out.Crime = &crime
	}
	if d.TransactionsErr != nil {
		e := *d.TransactionsErr
		out.TransactionsErr = &e
	}
	if d.DemographicsErr != nil {
		e := *d.DemographicsErr
		out.DemographicsErr = &e
	}
	if d.CrimeErr != nil {
		e := *d.CrimeErr
		out.CrimeErr = &e
	}
	if d.Heatmap != nil {
		out.Heatmap = append([]HeatmapPoint(nil), d.Heatmap...)
	}
	return &out
}

func copyCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
