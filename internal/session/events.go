package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"propertylens/server/internal/area"
	"propertylens/server/internal/listings"
	"propertylens/server/internal/models"
	"propertylens/server/internal/predict"
)

type command interface{}

type cmdStartSearch struct {
	postcode string
	reply    chan string
}

type cmdSelectListing struct {
	listingID string
	reply     chan error
}

type cmdSelectArea struct {
	reply chan error
}

type cmdClearSelection struct {
	reply chan error
}

// Events are posted by worker goroutines and applied by the loop. Each one
// carries the generation it belongs to; stale generations are dropped at
// the point of application.
type event interface{}

type evGeocodeDone struct {
	generation uint64
	location   *models.Location
}

type evStreamOpened struct {
	generation uint64
	stream     ListingStream
}

type evStreamEvent struct {
	generation uint64
	event      listings.Event
}

type evStreamFailed struct {
	generation uint64
	reason     string
}

type evAreaDone struct {
	generation uint64
	dataset    *models.AreaDataset
}

type evForecastDone struct {
	generation uint64
	listingID  string
	series     *models.PredictionSeries
	err        error
}

func (c *Controller) handleEvent(ev event) {
	switch ev := ev.(type) {
	case evGeocodeDone:
		c.applyGeocode(ev)
	case evStreamOpened:
		c.applyStreamOpened(ev)
	case evStreamEvent:
		c.applyStreamEvent(ev)
	case evStreamFailed:
		c.applyStreamFailed(ev)
	case evAreaDone:
		c.applyAreaDone(ev)
	case evForecastDone:
		c.applyForecastDone(ev)
	}
}

func (c *Controller) current(generation uint64) bool {
	return c.job != nil && c.job.generation == generation
}

func (c *Controller) applyGeocode(ev evGeocodeDone) {
	if !c.current(ev.generation) {
		c.logger.WithField("generation", ev.generation).Debug("Dropped stale geocode result")
		return
	}

	c.job.geocodeDone = true
	c.job.geocodeOK = ev.location != nil
	c.state.Location = ev.location

	c.buildHeatmap()
	c.refreshStatus()
	c.publish()
}

func (c *Controller) applyStreamOpened(ev evStreamOpened) {
	if !c.current(ev.generation) {
		ev.stream.Close()
		return
	}
	c.job.stream = ev.stream
}

func (c *Controller) applyStreamEvent(ev evStreamEvent) {
	if !c.current(ev.generation) {
		c.logger.WithField("generation", ev.generation).Debug("Dropped stale stream event")
		return
	}

	switch ev.event.Type {
	case listings.EventRecord:
		if ev.event.Record == nil {
			return
		}
		c.state.Listings = append(c.state.Listings, *ev.event.Record)
		c.state.Sections.Listings = models.Section{State: models.SectionData}

	case listings.EventStatus:
		// Progress markers such as "initialized" and "no_results" carry no
		// state of their own; the terminal event decides the outcome.
		return

	case listings.EventComplete:
		c.job.streamDone = true
		c.job.streamOK = true
		if len(c.state.Listings) == 0 {
			c.state.Sections.Listings = models.Section{State: models.SectionEmpty}
		} else {
			c.state.Sections.Listings = models.Section{State: models.SectionData}
		}
		c.refreshStatus()

	case listings.EventFailed:
		c.job.streamDone = true
		c.job.streamOK = false
		if len(c.state.Listings) > 0 {
			// Keep what already arrived; the section stays usable.
			c.state.Sections.Listings = models.Section{State: models.SectionData, Error: ev.event.Reason}
		} else {
			c.state.Sections.Listings = models.Section{State: models.SectionFailed, Error: ev.event.Reason}
		}
		c.refreshStatus()
	}

	c.publish()
}

func (c *Controller) applyStreamFailed(ev evStreamFailed) {
	if !c.current(ev.generation) {
		return
	}

	c.job.streamDone = true
	c.job.streamOK = false
	c.state.Sections.Listings = models.Section{State: models.SectionFailed, Error: ev.reason}

	c.refreshStatus()
	c.publish()
}

func (c *Controller) applyAreaDone(ev evAreaDone) {
	if !c.current(ev.generation) {
		c.logger.WithField("generation", ev.generation).Debug("Dropped stale area dataset")
		return
	}

	c.job.areaDone = true
	c.job.areaOK = ev.dataset != nil && !ev.dataset.Failed()
	c.state.Area = ev.dataset
	c.state.Sections.Transactions = transactionsSection(ev.dataset)
	c.state.Sections.Demographics = demographicsSection(ev.dataset)
	c.state.Sections.Crime = crimeSection(ev.dataset)

	c.buildHeatmap()
	c.refreshStatus()
	c.publish()
}

func (c *Controller) applyForecastDone(ev evForecastDone) {
	if !c.current(ev.generation) {
		c.logger.WithField("generation", ev.generation).Debug("Dropped stale forecast")
		return
	}
	selection := c.state.Selection
	if selection.Mode != models.SelectionListing || selection.ListingID != ev.listingID {
		c.logger.WithField("listing_id", ev.listingID).Debug("Dropped forecast for unselected listing")
		return
	}

	if ev.err != nil {
		c.state.Prediction = nil
		c.state.ChartDomain = nil
		c.state.Sections.Prediction = models.Section{State: models.SectionFailed, Error: ev.err.Error()}
	} else {
		c.state.Prediction = ev.series
		c.state.ChartDomain = predict.DisplayDomain(ev.series.Points)
		c.state.Sections.Prediction = models.Section{State: models.SectionData}
	}

	c.publish()
}

// buildHeatmap derives the heatmap once both the map centre and the
// transactions are in.
func (c *Controller) buildHeatmap() {
	if c.state.Location == nil || c.state.Area == nil || len(c.state.Area.Heatmap) > 0 {
		return
	}
	c.state.Area.Heatmap = area.BuildHeatmap(c.state.Location, c.state.Area.Transactions)
}

func (c *Controller) refreshStatus() {
	job := c.job
	switch {
	case !job.geocodeDone:
		c.state.Status = models.StatusGeocoding
	case !job.streamDone:
		c.state.Status = models.StatusStreaming
	case !job.areaDone:
		c.state.Status = models.StatusAggregating
	default:
		if !job.geocodeOK && !job.streamOK && !job.areaOK {
			c.state.Status = models.StatusFailed
		} else {
			c.state.Status = models.StatusReady
		}
		c.settle()
	}
}

// settle runs once per generation, after all three fetches have finished.
func (c *Controller) settle() {
	if c.job.settled {
		return
	}
	c.job.settled = true

	c.logger.WithFields(logrus.Fields{
		"session_id": c.state.SessionID,
		"status":     c.state.Status,
		"listings":   len(c.state.Listings),
	}).Info("Search settled")

	if c.deps.History == nil {
		return
	}

	record := &models.SearchRecord{
		SessionID:    c.state.SessionID,
		Postcode:     c.state.Postcode,
		Status:       string(c.state.Status),
		ListingCount: len(c.state.Listings),
		SearchedAt:   time.Now().UTC(),
	}
	if c.state.Location != nil {
		record.Locality = c.state.Location.Locality
	}
	if c.state.Area != nil {
		record.GrowthPct = c.state.Area.PriceGrowth.GrowthPct
	}

	go func() {
		if err := c.deps.History.Record(record); err != nil {
			c.logger.WithError(err).Error("Failed to record search history")
		}
	}()
}

func transactionsSection(d *models.AreaDataset) models.Section {
	if d == nil {
		return models.Section{State: models.SectionFailed, Error: "area data unavailable"}
	}
	if d.TransactionsErr != nil {
		return models.Section{State: models.SectionFailed, Error: d.TransactionsErr.Message}
	}
	if len(d.Transactions) == 0 {
		return models.Section{State: models.SectionEmpty}
	}
	return models.Section{State: models.SectionData}
}

func demographicsSection(d *models.AreaDataset) models.Section {
	if d == nil {
		return models.Section{State: models.SectionFailed, Error: "area data unavailable"}
	}
	if d.DemographicsErr != nil {
		return models.Section{State: models.SectionFailed, Error: d.DemographicsErr.Message}
	}
	if len(d.Demographics) == 0 {
		return models.Section{State: models.SectionEmpty}
	}
	return models.Section{State: models.SectionData}
}

func crimeSection(d *models.AreaDataset) models.Section {
	if d == nil {
		return models.Section{State: models.SectionFailed, Error: "area data unavailable"}
	}
	if d.CrimeErr != nil {
		return models.Section{State: models.SectionFailed, Error: d.CrimeErr.Message}
	}
	if d.Crime == nil {
		return models.Section{State: models.SectionEmpty}
	}
	return models.Section{State: models.SectionData}
}
