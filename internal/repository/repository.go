package repository

import (
	"context"
	"errors"

	"github.com/groundtruth-intake-api/internal/database"
	"github.com/groundtruth-intake-api/internal/models"
)

// ErrDuplicateIdempotencyKey is returned when a run with the same idempotency key exists
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// RunRepository defines the interface for validation run data operations
type RunRepository interface {
	Create(ctx context.Context, run *models.ValidationRun, messages []models.Finding) error
	Update(ctx context.Context, run *models.ValidationRun) error
	GetByID(ctx context.Context, id string) (*models.ValidationRun, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.ValidationRun, error)
	GetPendingRuns(ctx context.Context) ([]*models.ValidationRun, error)
	MarkRunAsPending(ctx context.Context, runID string) (bool, error)
	MarkRunAsProcessing(ctx context.Context, runID string) (bool, error)
	GetMessages(ctx context.Context, runID string, limit int) ([]models.Finding, error)
	List(ctx context.Context, filter models.HistoryFilter) ([]*models.ValidationRun, error)
	StreamAll(ctx context.Context, filter models.HistoryFilter, callback func(*models.ValidationRun) error) error
	CountByStatus(ctx context.Context) (map[models.RunStatus]int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Run RunRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Run: NewRunRepo(db),
	}
}
