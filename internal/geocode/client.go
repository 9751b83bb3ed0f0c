package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propertylens/server/internal/models"
)

// ErrInvalidPostcode rejects a malformed postcode before any network call.
var ErrInvalidPostcode = errors.New("invalid postcode")

// UK postcode shape: outward code with an optional inward part, so partial
// searches like "SW1A" pass as well as "SW1A 1AA".
var postcodePattern = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9][A-Za-z0-9]?\s*(?:[0-9][A-Za-z]{2})?$`)

// ValidPostcode reports whether the text looks like a UK postcode.
func ValidPostcode(postcode string) bool {
	return postcodePattern.MatchString(strings.TrimSpace(postcode))
}

// Client resolves postcodes to coordinates and a locality name. Lookups have
// no retries and no side effects.
type Client struct {
	logger  *logrus.Logger
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Status int `json:"status"`
	Result []struct {
		Postcode      string  `json:"postcode"`
		Latitude      float64 `json:"latitude"`
		Longitude     float64 `json:"longitude"`
		AdminDistrict string  `json:"admin_district"`
	} `json:"result"`
}

// Resolve looks up the postcode and returns the first match. An empty result
// set returns nil, and transport or upstream failures also degrade to nil
// after logging; callers treat a missing location as "map does not recenter",
// not as a session error. The postcode is validated before any network call.
func (c *Client) Resolve(ctx context.Context, postcode string) (*models.Location, error) {
	if !ValidPostcode(postcode) {
		return nil, ErrInvalidPostcode
	}

	endpoint := fmt.Sprintf("%s/postcodes?q=%s", c.baseURL, url.QueryEscape(strings.TrimSpace(postcode)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("postcode", postcode).Warn("Geocoding request failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"postcode": postcode,
			"status":   resp.StatusCode,
		}).Warn("Geocoding returned non-success status")
		return nil, nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.WithError(err).WithField("postcode", postcode).Warn("Failed to parse geocoding response")
		return nil, nil
	}

	if len(parsed.Result) == 0 {
		c.logger.WithField("postcode", postcode).Info("No geocoding match")
		return nil, nil
	}

	first := parsed.Result[0]
	c.logger.WithFields(logrus.Fields{
		"postcode":  postcode,
		"latitude":  first.Latitude,
		"longitude": first.Longitude,
		"locality":  first.AdminDistrict,
	}).Info("Resolved postcode")

	return &models.Location{
		Latitude:  first.Latitude,
		Longitude: first.Longitude,
		Locality:  first.AdminDistrict,
	}, nil
}
