package predict

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"propertylens/server/internal/models"
)

// Normalized property categories accepted by the prediction service.
const (
	CategoryFlats        = "Flats"
	CategoryTerraced     = "Terraced"
	CategorySemiDetached = "Semi-Detached"
	CategoryDetached     = "Detached"
	CategoryOther        = "Other"
)

// Tenure labels derived from the normalized category.
const (
	TenureFreehold  = "Freehold"
	TenureLeasehold = "Leasehold"
)

// Fallbacks used when a listing's free text yields nothing usable.
const (
	DefaultFloorAreaSqm = 70.0
	DefaultPropertyAge  = 20
	MinBedrooms         = 1
)

// SqFtPerSqm converts advertised square feet to square metres.
const SqFtPerSqm = 10.764

// categoryTable maps raw property-type text, lowercased, to its normalized
// category.
var categoryTable = map[string]string{
	"flat":                CategoryFlats,
	"apartment":           CategoryFlats,
	"studio":              CategoryFlats,
	"maisonette":          CategoryFlats,
	"duplex":              CategoryFlats,
	"penthouse":           CategoryFlats,
	"block of apartments": CategoryFlats,
	"terraced":            CategoryTerraced,
	"end of terrace":      CategoryTerraced,
	"townhouse":           CategoryTerraced,
	"mews":                CategoryTerraced,
	"house":               CategoryTerraced,
	"semi-detached":       CategorySemiDetached,
	"detached":            CategoryDetached,
	"link-detached":       CategoryDetached,
	"bungalow":            CategoryDetached,
	"cottage":             CategoryDetached,
	"farmhouse":           CategoryDetached,
	"barn conversion":     CategoryDetached,
	"land":                CategoryOther,
	"park home":           CategoryOther,
	"mobile home":         CategoryOther,
	"houseboat":           CategoryOther,
	"retirement property": CategoryOther,
}

// keywordScan resolves composite descriptions like "semi-detached house" or
// "luxury penthouse apartment". Order matters: more specific terms come
// before the generic words they contain.
var keywordScan = []struct {
	word     string
	category string
}{
	{"semi-detached", CategorySemiDetached},
	{"link-detached", CategoryDetached},
	{"detached", CategoryDetached},
	{"end of terrace", CategoryTerraced},
	{"terrace", CategoryTerraced},
	{"penthouse", CategoryFlats},
	{"maisonette", CategoryFlats},
	{"apartment", CategoryFlats},
	{"studio", CategoryFlats},
	{"duplex", CategoryFlats},
	{"flat", CategoryFlats},
	{"bungalow", CategoryDetached},
	{"farmhouse", CategoryDetached},
	{"barn conversion", CategoryDetached},
	{"cottage", CategoryDetached},
	{"townhouse", CategoryTerraced},
	{"mews", CategoryTerraced},
	{"houseboat", CategoryOther},
	{"park home", CategoryOther},
	{"mobile home", CategoryOther},
	{"land", CategoryOther},
	{"house", CategoryTerraced},
}

// NormalizeType maps raw property-type text to a normalized category.
// Unmapped text falls back to Terraced, the most common stock.
func NormalizeType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" || t == "n/a" {
		return CategoryTerraced
	}
	if category, ok := categoryTable[t]; ok {
		return category
	}
	for _, kw := range keywordScan {
		if strings.Contains(t, kw.word) {
			return kw.category
		}
	}
	return CategoryTerraced
}

// TenureFor infers tenure from the normalized category: flats are leasehold,
// everything else freehold.
func TenureFor(category string) string {
	if category == CategoryFlats {
		return TenureLeasehold
	}
	return TenureFreehold
}

var integerPattern = regexp.MustCompile(`\d+`)

// ParseBedrooms extracts the first integer from bedroom free text, floored
// at one so a studio still counts as a single room.
func ParseBedrooms(text string) int {
	if m := integerPattern.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n >= MinBedrooms {
			return n
		}
	}
	return MinBedrooms
}

var areaPattern = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?`)

// ParseFloorArea extracts a floor area in square metres from free text.
// Square feet are detected and converted; unparseable text returns the
// default. The scraper advertises areas in square feet unless the text says
// otherwise.
func ParseFloorArea(text string) float64 {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || t == "n/a" {
		return DefaultFloorAreaSqm
	}

	m := areaPattern.FindString(t)
	if m == "" {
		return DefaultFloorAreaSqm
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || value <= 0 {
		return DefaultFloorAreaSqm
	}

	if strings.Contains(t, "m²") || strings.Contains(t, "sq m") || strings.Contains(t, "sqm") || strings.Contains(t, "square met") {
		return math.Round(value)
	}
	return math.Round(value / SqFtPerSqm)
}

// Features is the normalized feature vector sent to the prediction service.
type Features struct {
	Postcode     string  `json:"postcode"`
	PropertyType string  `json:"propertytype"`
	Duration     string  `json:"duration"`
	NumberRooms  int     `json:"numberrooms"`
	FloorArea    float64 `json:"tfarea"`
	PropertyAge  int     `json:"property_age"`
}

// DeriveFeatures normalizes a listing's free text into the feature vector.
// The property age is a fixed assumption; listings do not advertise it.
func DeriveFeatures(listing *models.ListingRecord, postcode string) Features {
	category := NormalizeType(listing.PropertyType)
	return Features{
		Postcode:     strings.TrimSpace(postcode),
		PropertyType: category,
		Duration:     TenureFor(category),
		NumberRooms:  ParseBedrooms(listing.Bedrooms),
		FloorArea:    ParseFloorArea(listing.SquareFootage),
		PropertyAge:  DefaultPropertyAge,
	}
}
