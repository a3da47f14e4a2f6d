package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groundtruth-intake-api/internal/config"
	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/repository"
	"github.com/groundtruth-intake-api/internal/session"
	"github.com/groundtruth-intake-api/internal/validation"
	"github.com/rs/zerolog"
)

// uploadService is the concrete implementation of UploadService
type uploadService struct {
	repos     *repository.Repositories
	validator *validation.Validator
	reducer   session.Reducer
	cfg       *config.Config
	log       zerolog.Logger
}

// newUploadService creates a new UploadService
func newUploadService(repos *repository.Repositories, validator *validation.Validator, cfg *config.Config, log zerolog.Logger) *uploadService {
	return &uploadService{
		repos:     repos,
		validator: validator,
		reducer:   session.NewReducer(validator),
		cfg:       cfg,
		log:       log.With().Str("service", "upload").Logger(),
	}
}

// Inspect parses and validates a file without storing anything
func (s *uploadService) Inspect(ctx context.Context, fileName string, size int64, r io.Reader) (*session.UploadSession, error) {
	if err := validation.CheckFileName(fileName); err != nil {
		return nil, err
	}
	data, err := s.readUpload(size, r)
	if err != nil {
		return nil, err
	}

	sess := s.reducer.Reduce(session.UploadSession{}, session.FileSelected{
		Name: fileName,
		Size: int64(len(data)),
		Text: string(data),
	})

	s.log.Debug().
		Str("file", fileName).
		Bool("valid", sess.Verdict != nil && sess.Verdict.IsValid).
		Msg("Upload inspected")

	return &sess, nil
}

// CreateUpload validates a file, stores it and records a validation run
func (s *uploadService) CreateUpload(ctx context.Context, req *models.UploadRequest, r io.Reader) (*models.UploadResult, error) {
	if err := validation.CheckFileName(req.FileName); err != nil {
		return nil, err
	}
	data, err := s.readUpload(req.FileSize, r)
	if err != nil {
		return nil, err
	}

	table, err := validation.Parse(string(data))
	if err != nil {
		return nil, err
	}
	findings := s.validator.Check(table)
	verdict := validation.Verdict(findings)

	filePath, err := s.storeFile(data)
	if err != nil {
		return nil, err
	}

	run := &models.ValidationRun{
		ID:             newRunID(),
		FileName:       req.FileName,
		FileSize:       int64(len(data)),
		Location:       strings.TrimSpace(req.Location),
		Coordinates:    strings.TrimSpace(req.Coordinates),
		Satellite:      strings.TrimSpace(req.Satellite),
		LandcoverType:  strings.TrimSpace(req.LandcoverType),
		Status:         models.RunStatusUploaded,
		Headers:        table.Headers,
		TotalRows:      table.TotalRowCount,
		IsValid:        verdict.IsValid,
		ErrorCount:     len(verdict.Errors),
		WarningCount:   len(verdict.Warnings),
		FilePath:       filePath,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repos.Run.Create(ctx, run, findings); err != nil {
		if rmErr := os.Remove(filePath); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("file", filePath).Msg("Failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("file", req.FileName).
		Int("total_rows", run.TotalRows).
		Bool("valid", run.IsValid).
		Int("errors", run.ErrorCount).
		Int("warnings", run.WarningCount).
		Msg("Upload stored")

	return &models.UploadResult{
		Run:     run,
		Table:   table,
		Verdict: verdict,
	}, nil
}

// QueueProcessing moves a valid uploaded run to the pending queue
func (s *uploadService) QueueProcessing(ctx context.Context, runID string) (*models.ValidationRun, error) {
	run, err := s.repos.Run.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	queued, err := s.repos.Run.MarkRunAsPending(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !queued {
		return nil, ErrRunNotProcessable
	}

	s.log.Info().Str("run_id", runID).Msg("Run queued for processing")

	run.Status = models.RunStatusPending
	return run, nil
}

// readUpload reads at most MaxUploadSize bytes, rejecting anything larger
func (s *uploadService) readUpload(declared int64, r io.Reader) ([]byte, error) {
	limit := s.cfg.Upload.MaxUploadSize
	if declared > limit {
		return nil, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func (s *uploadService) storeFile(data []byte) (string, error) {
	uploadDir := s.cfg.Upload.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filePath := filepath.Join(uploadDir, fmt.Sprintf("ground_truth_%s.csv", uuid.New().String()[:8]))
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return filePath, nil
}

func newRunID() string {
	return "VAL-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}

// IsClientError reports whether err was caused by the uploaded file rather than the server
func IsClientError(err error) bool {
	return errors.Is(err, validation.ErrNotCSV) ||
		errors.Is(err, validation.ErrEmptyFile) ||
		errors.Is(err, ErrFileTooLarge)
}
