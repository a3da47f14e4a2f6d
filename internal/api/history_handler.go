package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/service"
	"github.com/rs/zerolog"
)

// HistoryHandler handles run history endpoints
type HistoryHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(services *service.Services, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		services: services,
		log:      log.With().Str("handler", "history").Logger(),
	}
}

// bindFilter reads search, status and limit from the query string
func bindFilter(c *gin.Context) (models.HistoryFilter, bool) {
	var filter models.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return filter, false
	}
	if filter.Status != "" && filter.Status != "all" && !models.ValidRunStatuses[models.RunStatus(filter.Status)] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: all, uploaded, pending, processing, completed, failed"})
		return filter, false
	}
	if filter.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
		return filter, false
	}
	return filter, true
}

// ListHistory handles GET /v1/history?search=...&status=...
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	runs, err := h.services.History.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"runs":  runs,
	})
}

// ExportHistory handles GET /v1/history/export?format=...
// Streams the filtered history directly to the response
func (h *HistoryHandler) ExportHistory(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "ndjson")
	if format != "ndjson" && format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: ndjson, json, csv"})
		return
	}

	if err := h.services.History.Stream(c.Request.Context(), c.Writer, filter, format); err != nil {
		h.log.Error().Err(err).Str("format", format).Msg("History export failed")
		// Can't return error JSON after streaming has started
		return
	}
}
