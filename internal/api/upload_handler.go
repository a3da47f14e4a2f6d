package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/groundtruth-intake-api/internal/config"
	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/repository"
	"github.com/groundtruth-intake-api/internal/service"
	"github.com/rs/zerolog"
)

// UploadHandler handles ground truth upload endpoints
type UploadHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "upload").Logger(),
	}
}

// uploadView is the client-facing shape of an upload session
type uploadView struct {
	FileName   string                    `json:"file_name"`
	FileSize   int64                     `json:"file_size"`
	Table      *models.ParsedTable       `json:"table,omitempty"`
	Verdict    *models.ValidationVerdict `json:"verdict,omitempty"`
	CanProcess bool                      `json:"can_process"`
}

// ValidateUpload handles POST /v1/uploads/validate
// Parses and validates the file without storing it
func (h *UploadHandler) ValidateUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	sess, err := h.services.Upload.Inspect(c.Request.Context(), header.Filename, header.Size, file)
	if err != nil {
		h.writeError(c, err, "failed to validate file")
		return
	}

	c.JSON(http.StatusOK, uploadView{
		FileName:   sess.FileName,
		FileSize:   sess.FileSize,
		Table:      sess.Table,
		Verdict:    sess.Verdict,
		CanProcess: sess.CanProcess(),
	})
}

// CreateUpload handles POST /v1/uploads
func (h *UploadHandler) CreateUpload(c *gin.Context) {
	ctx := c.Request.Context()

	// Get idempotency key from header
	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey != "" {
		if h.respondExisting(c, idempotencyKey) {
			return
		}
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	var req models.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload metadata"})
		return
	}
	req.FileName = header.Filename
	req.FileSize = header.Size
	req.IdempotencyKey = idempotencyKey

	result, err := h.services.Upload.CreateUpload(ctx, &req, file)
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) && h.respondExisting(c, idempotencyKey) {
		return
	}
	if err != nil {
		h.writeError(c, err, "failed to create upload")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run":          result.Run,
		"table":        result.Table,
		"verdict":      result.Verdict,
		"messages_url": "/v1/uploads/" + result.Run.ID + "/messages",
	})
}

// respondExisting writes the run stored under key, if any
func (h *UploadHandler) respondExisting(c *gin.Context, key string) bool {
	existing, err := h.services.Job.GetRunByIdempotencyKey(c.Request.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check idempotency key")
		return false
	}
	if existing == nil {
		return false
	}
	h.log.Info().Str("run_id", existing.ID).Msg("Returning existing run for idempotency key")
	c.JSON(http.StatusOK, gin.H{"run": existing})
	return true
}

// ProcessUpload handles POST /v1/uploads/:run_id/process
func (h *UploadHandler) ProcessUpload(c *gin.Context) {
	runID := c.Param("run_id")

	run, err := h.services.Upload.QueueProcessing(c.Request.Context(), runID)
	if err != nil {
		h.writeError(c, err, "failed to queue run")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  run.ID,
		"status":  run.Status,
		"message": "Run queued for processing",
	})
}

// GetUpload handles GET /v1/uploads/:run_id
func (h *UploadHandler) GetUpload(c *gin.Context) {
	runID := c.Param("run_id")

	run, err := h.services.Job.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetUploadMessages handles GET /v1/uploads/:run_id/messages
func (h *UploadHandler) GetUploadMessages(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("run_id")

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: json, csv"})
		return
	}

	run, err := h.services.Job.GetRun(ctx, runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	messages, err := h.services.Job.GetRunMessages(ctx, runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	if format == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=messages_%s.csv", runID))
		writer := csv.NewWriter(c.Writer)
		writer.Write([]string{"line", "severity", "message"})
		for _, m := range messages {
			writer.Write([]string{strconv.Itoa(m.Line), string(m.Severity), m.Message})
		}
		writer.Flush()
		return
	}

	if messages == nil {
		messages = []models.Finding{}
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":        runID,
		"error_count":   run.ErrorCount,
		"warning_count": run.WarningCount,
		"messages":      messages,
	})
}

// writeError maps service errors to HTTP status codes
func (h *UploadHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", h.cfg.Upload.MaxUploadSize/(1024*1024)),
		})
	case service.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
	case errors.Is(err, service.ErrRunNotProcessable):
		c.JSON(http.StatusConflict, gin.H{"error": "run is invalid or already queued"})
	default:
		h.log.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
