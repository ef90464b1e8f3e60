// api/handlers/track_handlers.go
package handlers

import (
	"log"
	"net/http"

	"sitepulse/api/forwarder"
	"sitepulse/api/models"
	"sitepulse/api/store"
	"sitepulse/api/utils"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandlers struct {
	AnalyticsStore *store.AnalyticsStore
	Forwarder      *forwarder.GAForwarder
}

func NewAnalyticsHandlers(s *store.AnalyticsStore, f *forwarder.GAForwarder) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		AnalyticsStore: s,
		Forwarder:      f,
	}
}

// Capture surface request payloads. The page snippet posts raw DOM-level
// signals; these handlers translate them into event store calls. Forwarder
// outcomes never affect the response: the page only learns whether the local
// record was persisted.

type PageViewRequest struct {
	URL           string `json:"url" binding:"required"`
	Title         string `json:"title"`
	Referrer      string `json:"referrer"`
	ViewportWidth int    `json:"viewportWidth"`
}

type ClickRequest struct {
	URL       string `json:"url" binding:"required"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Element   string `json:"element" binding:"required"`
	ElementID string `json:"elementId"`
	Classes   string `json:"classes"`
	Text      string `json:"text"`
}

type ScrollRequest struct {
	URL          string  `json:"url" binding:"required"`
	ScrollTop    float64 `json:"scrollTop"`
	WindowHeight float64 `json:"windowHeight" binding:"required"`
	DocHeight    float64 `json:"docHeight" binding:"required"`
}

type ConversionRequest struct {
	URL    string `json:"url" binding:"required"`
	FormID string `json:"formId" binding:"required"`
}

type NavigationRequest struct {
	URL    string `json:"url" binding:"required"`
	Target string `json:"target" binding:"required"`
}

type GAConfigRequest struct {
	MeasurementID string `json:"measurementId" binding:"required"`
	APISecret     string `json:"apiSecret" binding:"required"`
}

func (h *AnalyticsHandlers) TrackPageView(c *gin.Context) {
	var req PageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding page view JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	device := utils.DeviceType(req.ViewportWidth)
	if err := h.AnalyticsStore.RecordPageView(req.URL, req.Title, req.Referrer, device); err != nil {
		log.Printf("Error recording page view: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record page view"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *AnalyticsHandlers) TrackClick(c *gin.Context) {
	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding click JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	pos := models.Position{X: req.X, Y: req.Y}
	if err := h.AnalyticsStore.RecordClick(req.URL, pos, req.Element, req.ElementID, req.Classes, req.Text); err != nil {
		log.Printf("Error recording click: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record click"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *AnalyticsHandlers) TrackScroll(c *gin.Context) {
	var req ScrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding scroll JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// ScrollPercent guards the docHeight == windowHeight case by reporting 0,
	// which the store discards as below threshold.
	percent := utils.ScrollPercent(req.ScrollTop, req.WindowHeight, req.DocHeight)
	if err := h.AnalyticsStore.RecordScroll(req.URL, percent); err != nil {
		log.Printf("Error recording scroll: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record scroll"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *AnalyticsHandlers) TrackConversion(c *gin.Context) {
	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding conversion JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.AnalyticsStore.RecordConversion(req.URL, req.FormID); err != nil {
		log.Printf("Error recording conversion: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record conversion"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *AnalyticsHandlers) TrackNavigation(c *gin.Context) {
	var req NavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding navigation JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Navigation is forward-only: nothing is appended to the local record.
	h.AnalyticsStore.RecordNavigation(req.URL, req.Target)
	c.Status(http.StatusOK)
}

// GetReport computes the aggregate report for the requested date range
// (today, week, month; anything else means all records).
func (h *AnalyticsHandlers) GetReport(c *gin.Context) {
	dateRange := c.Query("range")
	if dateRange == "" {
		dateRange = store.RangeAll
	}

	report := h.AnalyticsStore.GenerateReport(dateRange)
	c.JSON(http.StatusOK, gin.H{
		"range":          dateRange,
		"report":         report,
		"conversionRate": report.ConversionRate(),
	})
}

// GetHourlyHistogram returns 24 buckets of filtered clicks by hour of day,
// for the dashboard's bar chart.
func (h *AnalyticsHandlers) GetHourlyHistogram(c *gin.Context) {
	dateRange := c.Query("range")
	if dateRange == "" {
		dateRange = store.RangeAll
	}

	c.JSON(http.StatusOK, gin.H{
		"range":   dateRange,
		"buckets": h.AnalyticsStore.HourlyHistogram(dateRange),
	})
}

// GetHeatmap returns the pixel coordinates of all recorded clicks for
// heatmap rendering.
func (h *AnalyticsHandlers) GetHeatmap(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"points": h.AnalyticsStore.HeatmapPoints()})
}

// GetGAConfig returns the current forwarder configuration.
func (h *AnalyticsHandlers) GetGAConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Forwarder.Config())
}

// SaveGAConfig stores new collector credentials. Saving always enables
// forwarding.
func (h *AnalyticsHandlers) SaveGAConfig(c *gin.Context) {
	var req GAConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.Forwarder.SaveConfig(req.MeasurementID, req.APISecret); err != nil {
		log.Printf("Error saving GA config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save configuration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Google Analytics configuration saved"})
}

// GetForwarderLog returns the forwarder's diagnostic log, newest first.
func (h *AnalyticsHandlers) GetForwarderLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"eventsSent": h.Forwarder.EventsSent(),
		"entries":    h.Forwarder.Entries(),
	})
}

// ClearForwarderLog empties the forwarder's diagnostic log.
func (h *AnalyticsHandlers) ClearForwarderLog(c *gin.Context) {
	h.Forwarder.ClearLog()
	c.Status(http.StatusNoContent)
}
