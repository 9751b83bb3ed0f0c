package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"propertylens/server/internal/models"
)

// Client requests price forecasts from the prediction service.
type Client struct {
	logger  *logrus.Logger
	baseURL string
	horizon int
	client  *http.Client
}

// NewClient creates a prediction client. The horizon is clamped to the
// service's supported range of one to five years.
func NewClient(baseURL string, horizon int, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if horizon < 1 || horizon > 5 {
		horizon = 5
	}
	return &Client{
		logger:  logger,
		baseURL: baseURL,
		horizon: horizon,
		client:  &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Features
	NumYears int `json:"num_years"`
}

type predictResponse struct {
	Predictions []models.PredictionPoint `json:"predictions"`
	Error       string                   `json:"error"`
}

// Forecast derives the listing's feature vector and requests a price series
// over the configured horizon. Points come back sorted by year. Non-finite
// prices are rejected here so they never reach a view.
func (c *Client) Forecast(ctx context.Context, listing *models.ListingRecord, postcode string) (*models.PredictionSeries, error) {
	features := DeriveFeatures(listing, postcode)

	payload, err := json.Marshal(predictRequest{Features: features, NumYears: c.horizon})
	if err != nil {
		return nil, fmt.Errorf("encoding prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"listing_id":    listing.ID,
		"property_type": features.PropertyType,
		"rooms":         features.NumberRooms,
		"floor_area":    features.FloorArea,
	}).Debug("Requesting price forecast")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading prediction response: %w", err)
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing prediction response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("prediction service: %s", parsed.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}
	if len(parsed.Predictions) == 0 {
		return nil, fmt.Errorf("prediction service returned no points")
	}

	for _, point := range parsed.Predictions {
		if math.IsNaN(point.PredictedPrice) || math.IsInf(point.PredictedPrice, 0) {
			return nil, fmt.Errorf("prediction for year %d is not a finite number", point.Year)
		}
	}

	points := make([]models.PredictionPoint, len(parsed.Predictions))
	copy(points, parsed.Predictions)
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })

	return &models.PredictionSeries{ListingID: listing.ID, Points: points}, nil
}
