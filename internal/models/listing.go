package models

import "strconv"

// ListingRecord is one property delivered by the listing stream. The upstream
// scraper emits every field as text with "N/A" standing in for missing values,
// so free-text fields are kept raw here and normalized at the point of use.
type ListingRecord struct {
	ID            string   `json:"id"`
	Address       string   `json:"address"`
	Price         string   `json:"price"`
	Description   string   `json:"description"`
	Bedrooms      string   `json:"bedrooms"`
	Bathrooms     string   `json:"bathrooms"`
	SquareFootage string   `json:"square_footage"`
	PropertyType  string   `json:"property_type"`
	Latitude      string   `json:"latitude"`
	Longitude     string   `json:"longitude"`
	DetailURL     string   `json:"detail_url"`
	Source        string   `json:"source"`
	ImageURLs     []string `json:"image_urls"`
}

// Coordinates parses the textual lat/lng pair. ok is false when either axis
// is missing or not numeric.
func (r *ListingRecord) Coordinates() (lat, lng float64, ok bool) {
	lat, errLat := strconv.ParseFloat(r.Latitude, 64)
	lng, errLng := strconv.ParseFloat(r.Longitude, 64)
	if errLat != nil || errLng != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// Location is a resolved postcode centre.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Locality  string  `json:"locality"`
}
