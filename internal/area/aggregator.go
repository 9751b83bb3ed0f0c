package area

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"propertylens/server/internal/models"
)

// Aggregator fans out the three area fetches for a postcode and joins them
// into one dataset. Each fetch settles independently; one failure never
// cancels or blocks the others.
type Aggregator struct {
	logger  *logrus.Logger
	baseURL string
	client  *http.Client
}

func NewAggregator(baseURL string, timeout time.Duration, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Aggregator{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch runs the three fetches concurrently and returns once all have
// settled. The returned dataset is complete in shape: failed sections carry
// a SectionError, and the growth metrics are derived from whatever
// transactions arrived. Fetch itself never fails; AreaDataset.Failed()
// reports the all-three-down case.
func (a *Aggregator) Fetch(ctx context.Context, postcode string) *models.AreaDataset {
	dataset := &models.AreaDataset{}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dataset.Transactions, dataset.TransactionsErr = a.fetchTransactions(ctx, postcode)
	}()
	go func() {
		defer wg.Done()
		dataset.Demographics, dataset.FetchNotes, dataset.DemographicsErr = a.fetchDemographics(ctx, postcode)
	}()
	go func() {
		defer wg.Done()
		dataset.Crime, dataset.CrimeErr = a.fetchCrime(ctx, postcode)
	}()
	wg.Wait()

	// Growth derivation expects date-descending order; re-sort rather
	// than trusting the upstream.
	sortTransactionsByDateDesc(dataset.Transactions)
	dataset.PriceGrowth = ComputeGrowth(dataset.Transactions)

	a.logger.WithFields(logrus.Fields{
		"postcode":     postcode,
		"transactions": len(dataset.Transactions),
		"failed":       dataset.Failed(),
	}).Info("Area dataset settled")

	return dataset
}

func (a *Aggregator) fetchTransactions(ctx context.Context, postcode string) ([]models.Transaction, *models.SectionError) {
	body, secErr := a.get(ctx, "transactions", postcode)
	if secErr != nil {
		return nil, secErr
	}

	var parsed struct {
		Transactions []models.Transaction `json:"transactions"`
		Error        string               `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, models.NewSectionError(models.KindParse, fmt.Sprintf("unexpected transactions response: %v", err))
	}
	if parsed.Error != "" {
		return nil, models.NewSectionError(models.KindUpstream, parsed.Error)
	}
	return parsed.Transactions, nil
}

func (a *Aggregator) fetchDemographics(ctx context.Context, postcode string) (map[string]models.DemographicTopic, []string, *models.SectionError) {
	body, secErr := a.get(ctx, "demographics", postcode)
	if secErr != nil {
		return nil, nil, secErr
	}

	var parsed struct {
		Demographics map[string]models.DemographicTopic `json:"demographics"`
		FetchErrors  []string                           `json:"fetchErrors"`
		Error        string                             `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, models.NewSectionError(models.KindParse, fmt.Sprintf("unexpected demographics response: %v", err))
	}
	if parsed.Error != "" {
		return nil, nil, models.NewSectionError(models.KindUpstream, parsed.Error)
	}
	return parsed.Demographics, parsed.FetchErrors, nil
}

func (a *Aggregator) fetchCrime(ctx context.Context, postcode string) (*models.CrimeSummary, *models.SectionError) {
	body, secErr := a.get(ctx, "crime", postcode)
	if secErr != nil {
		return nil, secErr
	}

	var parsed struct {
		models.CrimeSummary
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, models.NewSectionError(models.KindParse, fmt.Sprintf("unexpected crime response: %v", err))
	}
	if parsed.Error != "" {
		return nil, models.NewSectionError(models.KindUpstream, parsed.Error)
	}
	return &parsed.CrimeSummary, nil
}

// get performs one bounded GET and classifies failures without aborting
// sibling fetches.
func (a *Aggregator) get(ctx context.Context, path, postcode string) ([]byte, *models.SectionError) {
	endpoint := fmt.Sprintf("%s/%s?postcode=%s", a.baseURL, path, url.QueryEscape(postcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewSectionError(models.KindTransport, fmt.Sprintf("failed to create request: %v", err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"path":     path,
			"postcode": postcode,
		}).Warn("Area fetch failed")
		return nil, models.NewSectionError(models.KindTransport, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewSectionError(models.KindTransport, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		// An error body still names the reason; prefer it over the
		// bare status code.
		var parsed struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			return nil, models.NewSectionError(models.KindUpstream, parsed.Error)
		}
		return nil, models.NewSectionError(models.KindUpstream, fmt.Sprintf("%s returned status %d", path, resp.StatusCode))
	}

	return body, nil
}

func sortTransactionsByDateDesc(transactions []models.Transaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		di, okI := transactions[i].ParsedDate()
		dj, okJ := transactions[j].ParsedDate()
		if okI != okJ {
			// Undated rows sink to the end so they never become the
			// earliest/latest boundary.
			return okI
		}
		return di.After(dj)
	})
}
