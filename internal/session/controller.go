package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"propertylens/server/internal/geocode"
	"propertylens/server/internal/listings"
	"propertylens/server/internal/models"
)

var (
	ErrControllerClosed = errors.New("session controller is closed")
	ErrNoActiveSession  = errors.New("no active search session")
	ErrListingNotFound  = errors.New("listing not found in current results")
)

// Geocoder resolves a postcode to coordinates. A nil location with a nil
// error means the lookup degraded; the search carries on without one.
type Geocoder interface {
	Resolve(ctx context.Context, postcode string) (*models.Location, error)
}

// ListingStream is a live stream of scrape events for one search generation.
type ListingStream interface {
	Events() <-chan listings.Event
	Close()
}

// ListingSource opens a listing stream for a postcode.
type ListingSource interface {
	Open(ctx context.Context, generation uint64, postcode string) (ListingStream, error)
}

// AreaFetcher collects the area dataset for a postcode. It blocks until
// every section has settled.
type AreaFetcher interface {
	Fetch(ctx context.Context, postcode string) *models.AreaDataset
}

// Forecaster produces a price forecast for one listing.
type Forecaster interface {
	Forecast(ctx context.Context, listing *models.ListingRecord, postcode string) (*models.PredictionSeries, error)
}

// HistoryRecorder persists a settled search.
type HistoryRecorder interface {
	Record(record *models.SearchRecord) error
}

// Dependencies are the upstream collaborators of a Controller. History may
// be nil; settled searches are then simply not recorded.
type Dependencies struct {
	Geocoder   Geocoder
	Listings   ListingSource
	Area       AreaFetcher
	Forecaster Forecaster
	History    HistoryRecorder
}

// streamSource adapts the concrete listings client to ListingSource.
type streamSource struct {
	client *listings.Client
}

// NewListingSource wraps a listings client for use as a controller dependency.
func NewListingSource(client *listings.Client) ListingSource {
	return streamSource{client: client}
}

func (s streamSource) Open(ctx context.Context, generation uint64, postcode string) (ListingStream, error) {
	stream, err := s.client.Open(ctx, generation, postcode)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// searchJob tracks one search generation. All fields are owned by the
// controller loop.
type searchJob struct {
	generation uint64
	postcode   string
	ctx        context.Context
	cancel     context.CancelFunc
	stream     ListingStream

	geocodeDone bool
	geocodeOK   bool
	streamDone  bool
	streamOK    bool
	areaDone    bool
	areaOK      bool
	settled     bool
}

// Controller owns the single search session. All state changes flow through
// its loop goroutine, one at a time; everything else sees immutable
// snapshots.
type Controller struct {
	logger      *logrus.Logger
	deps        Dependencies
	broadcaster *Broadcaster

	commands chan command
	events   chan event
	done     chan struct{}
	closed   bool
	mu       sync.RWMutex

	snapshot *models.ViewState

	// Owned by the run loop.
	state *models.ViewState
	job   *searchJob
}

// NewController creates the session controller. Call Start before use.
func NewController(deps Dependencies, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	state := newIdleState()
	return &Controller{
		logger:      logger,
		deps:        deps,
		broadcaster: NewBroadcaster(8, logger),
		commands:    make(chan command),
		events:      make(chan event, 64),
		done:        make(chan struct{}),
		snapshot:    state.Clone(),
		state:       state,
	}
}

func newIdleState() *models.ViewState {
	return &models.ViewState{
		Status:    models.StatusIdle,
		Listings:  []models.ListingRecord{},
		Selection: models.Selection{Mode: models.SelectionNone},
		Sections: models.Sections{
			Listings:     models.Section{State: models.SectionIdle},
			Transactions: models.Section{State: models.SectionIdle},
			Demographics: models.Section{State: models.SectionIdle},
			Crime:        models.Section{State: models.SectionIdle},
			Prediction:   models.Section{State: models.SectionIdle},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// Start launches the controller loop.
func (c *Controller) Start() {
	go c.run()
}

func (c *Controller) run() {
	defer func() {
		if c.job != nil {
			c.job.cancel()
			if c.job.stream != nil {
				c.job.stream.Close()
			}
		}
	}()

	for {
		select {
		case <-c.done:
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

// Close stops the loop, cancels the current search and closes all
// subscriber channels.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.broadcaster.Close()
}

// StartSearch begins a new search, superseding any search in flight. The
// postcode is validated before anything is torn down; an invalid one leaves
// the current session untouched.
func (c *Controller) StartSearch(postcode string) (string, error) {
	trimmed := strings.TrimSpace(postcode)
	if !geocode.ValidPostcode(trimmed) {
		return "", geocode.ErrInvalidPostcode
	}

	reply := make(chan string, 1)
	if err := c.send(cmdStartSearch{postcode: trimmed, reply: reply}); err != nil {
		return "", err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-c.done:
		return "", ErrControllerClosed
	}
}

// SelectListing focuses the detail view on one listing and requests its
// price forecast.
func (c *Controller) SelectListing(listingID string) error {
	reply := make(chan error, 1)
	if err := c.send(cmdSelectListing{listingID: listingID, reply: reply}); err != nil {
		return err
	}
	return c.await(reply)
}

// SelectAreaSummary focuses the detail view on the area overview.
func (c *Controller) SelectAreaSummary() error {
	reply := make(chan error, 1)
	if err := c.send(cmdSelectArea{reply: reply}); err != nil {
		return err
	}
	return c.await(reply)
}

// ClearSelection returns the detail view to its unfocused state. Fetched
// data is kept.
func (c *Controller) ClearSelection() error {
	reply := make(chan error, 1)
	if err := c.send(cmdClearSelection{reply: reply}); err != nil {
		return err
	}
	return c.await(reply)
}

func (c *Controller) send(cmd command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-c.done:
		return ErrControllerClosed
	}
}

func (c *Controller) await(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrControllerClosed
	}
}

// Snapshot returns the latest published view state. Snapshots are shared;
// callers must not mutate them.
func (c *Controller) Snapshot() *models.ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe registers for snapshot updates.
func (c *Controller) Subscribe() (<-chan *models.ViewState, func(), error) {
	return c.broadcaster.Subscribe()
}

func (c *Controller) handleCommand(cmd command) {
	switch cmd := cmd.(type) {
	case cmdStartSearch:
		cmd.reply <- c.startSearch(cmd.postcode)
	case cmdSelectListing:
		cmd.reply <- c.selectListing(cmd.listingID)
	case cmdSelectArea:
		cmd.reply <- c.selectArea()
	case cmdClearSelection:
		cmd.reply <- c.clearSelection()
	}
}

func (c *Controller) startSearch(postcode string) string {
	if c.job != nil {
		c.job.cancel()
		if c.job.stream != nil {
			c.job.stream.Close()
		}
	}

	generation := c.state.Generation + 1
	ctx, cancel := context.WithCancel(context.Background())
	job := &searchJob{
		generation: generation,
		postcode:   postcode,
		ctx:        ctx,
		cancel:     cancel,
	}
	c.job = job

	sessionID := uuid.NewString()
	c.state = &models.ViewState{
		SessionID:  sessionID,
		Generation: generation,
		Status:     models.StatusGeocoding,
		Postcode:   postcode,
		Listings:   []models.ListingRecord{},
		Selection:  models.Selection{Mode: models.SelectionNone},
		Sections: models.Sections{
			Listings:     models.Section{State: models.SectionLoading},
			Transactions: models.Section{State: models.SectionLoading},
			Demographics: models.Section{State: models.SectionLoading},
			Crime:        models.Section{State: models.SectionLoading},
			Prediction:   models.Section{State: models.SectionIdle},
		},
	}

	c.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"generation": generation,
		"postcode":   postcode,
	}).Info("Search started")

	go c.runGeocode(job)
	go c.runStream(job)
	go c.runArea(job)

	c.publish()
	return sessionID
}

func (c *Controller) selectListing(listingID string) error {
	if c.job == nil {
		return ErrNoActiveSession
	}

	var listing *models.ListingRecord
	for i := range c.state.Listings {
		if c.state.Listings[i].ID == listingID {
			listing = &c.state.Listings[i]
			break
		}
	}
	if listing == nil {
		return ErrListingNotFound
	}

	c.state.Selection = models.Selection{Mode: models.SelectionListing, ListingID: listingID}
	c.state.Prediction = nil
	c.state.ChartDomain = nil
	c.state.Sections.Prediction = models.Section{State: models.SectionLoading}

	record := *listing
	record.ImageURLs = append([]string(nil), listing.ImageURLs...)
	go c.runForecast(c.job, record, listingID)

	c.publish()
	return nil
}

func (c *Controller) selectArea() error {
	if c.job == nil {
		return ErrNoActiveSession
	}

	c.state.Selection = models.Selection{Mode: models.SelectionArea}
	c.state.Prediction = nil
	c.state.ChartDomain = nil
	c.state.Sections.Prediction = models.Section{State: models.SectionIdle}

	c.publish()
	return nil
}

func (c *Controller) clearSelection() error {
	if c.job == nil {
		return ErrNoActiveSession
	}

	c.state.Selection = models.Selection{Mode: models.SelectionNone}
	c.state.Prediction = nil
	c.state.ChartDomain = nil
	c.state.Sections.Prediction = models.Section{State: models.SectionIdle}

	c.publish()
	return nil
}

func (c *Controller) runGeocode(job *searchJob) {
	location, err := c.deps.Geocoder.Resolve(job.ctx, job.postcode)
	if err != nil {
		location = nil
	}
	c.post(evGeocodeDone{generation: job.generation, location: location})
}

func (c *Controller) runStream(job *searchJob) {
	stream, err := c.deps.Listings.Open(job.ctx, job.generation, job.postcode)
	if err != nil {
		c.post(evStreamFailed{generation: job.generation, reason: err.Error()})
		return
	}
	c.post(evStreamOpened{generation: job.generation, stream: stream})

	for {
		select {
		case <-job.ctx.Done():
			return
		case ev := <-stream.Events():
			c.post(evStreamEvent{generation: job.generation, event: ev})
			if ev.Type == listings.EventComplete || ev.Type == listings.EventFailed {
				return
			}
		}
	}
}

func (c *Controller) runArea(job *searchJob) {
	dataset := c.deps.Area.Fetch(job.ctx, job.postcode)
	c.post(evAreaDone{generation: job.generation, dataset: dataset})
}

func (c *Controller) runForecast(job *searchJob, listing models.ListingRecord, listingID string) {
	series, err := c.deps.Forecaster.Forecast(job.ctx, &listing, job.postcode)
	c.post(evForecastDone{generation: job.generation, listingID: listingID, series: series, err: err})
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) publish() {
	c.state.UpdatedAt = time.Now().UTC()
	snap := c.state.Clone()

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	c.broadcaster.Publish(snap)
}
