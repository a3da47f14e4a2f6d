package service

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/groundtruth-intake-api/internal/config"
	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/repository"
	"github.com/groundtruth-intake-api/internal/session"
	"github.com/groundtruth-intake-api/internal/validation"
	"github.com/rs/zerolog"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the configured size limit
	ErrFileTooLarge = errors.New("file too large")
	// ErrRunNotFound is returned for unknown run ids
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotProcessable is returned when a run is invalid or already queued
	ErrRunNotProcessable = errors.New("run cannot be processed")
	// ErrUnsupportedFormat is returned for unknown export formats
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// UploadService defines the interface for ground truth intake
type UploadService interface {
	Inspect(ctx context.Context, fileName string, size int64, r io.Reader) (*session.UploadSession, error)
	CreateUpload(ctx context.Context, req *models.UploadRequest, r io.Reader) (*models.UploadResult, error)
	QueueProcessing(ctx context.Context, runID string) (*models.ValidationRun, error)
}

// ProcessingService turns a validated table into a processing result.
// Implementations may block; they must honour ctx cancellation.
type ProcessingService interface {
	Process(ctx context.Context, table *models.ParsedTable) (*models.ProcessingResult, error)
}

// JobService defines the interface for background run processing
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	ProcessPending(ctx context.Context)
	GetRun(ctx context.Context, id string) (*models.RunResponse, error)
	GetRunByIdempotencyKey(ctx context.Context, key string) (*models.ValidationRun, error)
	GetRunMessages(ctx context.Context, id string) ([]models.Finding, error)
}

// HistoryService defines the interface for browsing past runs
type HistoryService interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]*models.ValidationRun, error)
	Stream(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter, format string) error
	CountByStatus(ctx context.Context) (map[models.RunStatus]int, error)
}

// Services holds all service interfaces
type Services struct {
	Upload  UploadService
	Job     JobService
	History HistoryService
}

// NewServices creates all services with the simulated processor
func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	return NewServicesWithProcessor(repos, cfg, NewSimulatedProcessor(cfg.Processing.Delay, log), log)
}

// NewServicesWithProcessor creates all services around the given processor
func NewServicesWithProcessor(repos *repository.Repositories, cfg *config.Config, processor ProcessingService, log zerolog.Logger) *Services {
	validator := validation.NewValidator(cfg.Validation.Mode())

	return &Services{
		Upload:  newUploadService(repos, validator, cfg, log),
		Job:     newJobService(repos.Run, processor, validator, cfg.Processing, log),
		History: newHistoryService(repos, log),
	}
}
