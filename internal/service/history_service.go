package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/repository"
	"github.com/rs/zerolog"
)

// historyService is the concrete implementation of HistoryService
type historyService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newHistoryService creates a new HistoryService
func newHistoryService(repos *repository.Repositories, log zerolog.Logger) *historyService {
	return &historyService{
		repos: repos,
		log:   log.With().Str("service", "history").Logger(),
	}
}

// List returns runs matching the filter, newest first
func (s *historyService) List(ctx context.Context, filter models.HistoryFilter) ([]*models.ValidationRun, error) {
	runs, err := s.repos.Run.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*models.ValidationRun{}
	}
	return runs, nil
}

// CountByStatus returns the number of runs in each status
func (s *historyService) CountByStatus(ctx context.Context) (map[models.RunStatus]int, error) {
	return s.repos.Run.CountByStatus(ctx)
}

// Stream writes matching runs in the requested format
func (s *historyService) Stream(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter, format string) error {
	s.log.Info().Str("format", format).Str("search", filter.Search).Str("status", filter.Status).Msg("Starting history export")

	switch format {
	case "ndjson":
		return s.streamNDJSON(ctx, w, filter)
	case "json":
		return s.streamJSON(ctx, w, filter)
	case "csv":
		return s.streamCSV(ctx, w, filter)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (s *historyService) streamNDJSON(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=validation_history.ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Run.StreamAll(ctx, filter, func(run *models.ValidationRun) error {
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		w.Write(data)
		w.Write([]byte("\n"))
		count++

		// Flush every 100 records
		if count%100 == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("History export completed")
	return err
}

func (s *historyService) streamJSON(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=validation_history.json")

	w.Write([]byte("["))
	first := true

	err := s.repos.Run.StreamAll(ctx, filter, func(run *models.ValidationRun) error {
		if !first {
			w.Write([]byte(","))
		}
		first = false

		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		w.Write(data)
		return nil
	})

	w.Write([]byte("]"))
	return err
}

var historyCSVHeader = []string{
	"id", "file_name", "location", "satellite", "landcover_type", "status",
	"total_rows", "is_valid", "error_count", "warning_count", "data_points",
	"accuracy", "rmse", "correlation", "ndvi", "sam", "created_at", "completed_at",
}

func (s *historyService) streamCSV(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=validation_history.csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write(historyCSVHeader)

	return s.repos.Run.StreamAll(ctx, filter, func(run *models.ValidationRun) error {
		return writer.Write(historyCSVRecord(run))
	})
}

func historyCSVRecord(run *models.ValidationRun) []string {
	completedAt := ""
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		run.ID,
		run.FileName,
		run.Location,
		run.Satellite,
		run.LandcoverType,
		string(run.Status),
		strconv.Itoa(run.TotalRows),
		strconv.FormatBool(run.IsValid),
		strconv.Itoa(run.ErrorCount),
		strconv.Itoa(run.WarningCount),
		strconv.Itoa(run.DataPoints),
		formatMetric(run.Metrics.Accuracy),
		formatMetric(run.Metrics.RMSE),
		formatMetric(run.Metrics.Correlation),
		formatMetric(run.Metrics.NDVI),
		formatMetric(run.Metrics.SAM),
		run.CreatedAt.UTC().Format(time.RFC3339),
		completedAt,
	}
}

// formatMetric renders an absent metric as an empty cell
func formatMetric(v *float64) string {
	if v == nil {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(*v, 'f', 4, 64), "0"), ".")
}
