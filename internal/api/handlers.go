package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propertylens/server/internal/area"
	"propertylens/server/internal/geocode"
	"propertylens/server/internal/models"
	"propertylens/server/internal/session"
)

// SessionController is the command surface of the search session.
type SessionController interface {
	StartSearch(postcode string) (string, error)
	SelectListing(listingID string) error
	SelectAreaSummary() error
	ClearSelection() error
	Snapshot() *models.ViewState
	Subscribe() (<-chan *models.ViewState, func(), error)
}

// HistoryStore reads past searches.
type HistoryStore interface {
	Recent(limit int) ([]models.SearchRecord, error)
}

type Handler struct {
	controller SessionController
	history    HistoryStore
	logger     *logrus.Logger
}

type SearchRequest struct {
	Postcode string `json:"postcode" binding:"required"`
}

type SelectRequest struct {
	ListingID   string `json:"listing_id"`
	AreaSummary bool   `json:"area_summary"`
}

func NewHandler(controller SessionController, history HistoryStore, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		controller: controller,
		history:    history,
		logger:     logger,
	}
}

// StartSearch kicks off a search for a postcode. The work is asynchronous;
// progress arrives over /api/stream.
func (h *Handler) StartSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to parse search request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sessionID, err := h.controller.StartSearch(req.Postcode)
	if err != nil {
		if errors.Is(err, geocode.ErrInvalidPostcode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UK postcode"})
			return
		}
		h.logger.WithError(err).Error("Failed to start search")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": sessionID,
		"status":     "accepted",
	})
}

// GetState returns the current view snapshot.
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// Select focuses the detail view on a listing or on the area summary.
func (h *Handler) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to parse select request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var err error
	switch {
	case req.ListingID != "" && !req.AreaSummary:
		err = h.controller.SelectListing(req.ListingID)
	case req.AreaSummary && req.ListingID == "":
		err = h.controller.SelectAreaSummary()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide either listing_id or area_summary"})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, session.ErrListingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		case errors.Is(err, session.ErrNoActiveSession):
			c.JSON(http.StatusConflict, gin.H{"error": "No active search"})
		default:
			h.logger.WithError(err).Error("Failed to update selection")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Selection is unavailable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "selected"})
}

// Deselect clears the detail focus. Fetched data is kept.
func (h *Handler) Deselect(c *gin.Context) {
	if err := h.controller.ClearSelection(); err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "No active search"})
			return
		}
		h.logger.WithError(err).Error("Failed to clear selection")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Selection is unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// GetHeatmap returns the current price heatmap as GeoJSON, ready for a map
// layer. With no data it returns an empty feature collection.
func (h *Handler) GetHeatmap(c *gin.Context) {
	snap := h.controller.Snapshot()

	var points []models.HeatmapPoint
	if snap.Area != nil {
		points = snap.Area.Heatmap
	}

	c.JSON(http.StatusOK, area.HeatmapGeoJSON(points))
}

// GetHistory returns the most recent settled searches.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, []models.SearchRecord{})
		return
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	records, err := h.history.Recent(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get search history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get search history"})
		return
	}

	c.JSON(http.StatusOK, records)
}
