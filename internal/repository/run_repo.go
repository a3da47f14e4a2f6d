package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/groundtruth-intake-api/internal/database"
	"github.com/groundtruth-intake-api/internal/models"
	"github.com/lib/pq"
)

const runColumns = `id, file_name, file_size, location, coordinates, satellite, landcover_type,
	status, headers, total_rows, is_valid, error_count, warning_count,
	accuracy, rmse, correlation, ndvi, sam, data_points, duration_ms, failure_reason,
	file_path, idempotency_key, created_at, started_at, completed_at`

// runRepo is the concrete implementation of RunRepository
type runRepo struct {
	db *database.DB
}

// NewRunRepo creates a new validation run repository
func NewRunRepo(db *database.DB) RunRepository {
	return &runRepo{db: db}
}

// Create inserts a run together with its validation messages. Both land in one
// transaction so a run never reports findings it does not have.
func (r *runRepo) Create(ctx context.Context, run *models.ValidationRun, messages []models.Finding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO validation_runs (id, file_name, file_size, location, coordinates, satellite,
			landcover_type, status, headers, total_rows, is_valid, error_count, warning_count,
			file_path, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID, run.FileName, run.FileSize, run.Location, run.Coordinates, run.Satellite,
		run.LandcoverType, run.Status, pq.Array(run.Headers), run.TotalRows, run.IsValid,
		run.ErrorCount, run.WarningCount, nullString(run.FilePath), nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && run.IdempotencyKey != "" {
		return ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return err
	}

	if err := copyMessages(ctx, tx, run.ID, messages); err != nil {
		return fmt.Errorf("failed to store validation messages: %w", err)
	}

	return tx.Commit()
}

// Update updates run status, metrics and timings
func (r *runRepo) Update(ctx context.Context, run *models.ValidationRun) error {
	query := `
		UPDATE validation_runs SET
			status = $1, accuracy = $2, rmse = $3, correlation = $4, ndvi = $5, sam = $6,
			data_points = $7, duration_ms = $8, failure_reason = $9, started_at = $10, completed_at = $11
		WHERE id = $12
	`
	_, err := r.db.ExecContext(ctx, query,
		run.Status, nullFloat(run.Metrics.Accuracy), nullFloat(run.Metrics.RMSE),
		nullFloat(run.Metrics.Correlation), nullFloat(run.Metrics.NDVI), nullFloat(run.Metrics.SAM),
		run.DataPoints, run.DurationMs, nullString(run.FailureReason), run.StartedAt, run.CompletedAt,
		run.ID,
	)
	return err
}

// GetByID retrieves a run by ID
func (r *runRepo) GetByID(ctx context.Context, id string) (*models.ValidationRun, error) {
	query := `SELECT ` + runColumns + ` FROM validation_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetByIdempotencyKey retrieves a run by idempotency key
func (r *runRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.ValidationRun, error) {
	query := `SELECT ` + runColumns + ` FROM validation_runs WHERE idempotency_key = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetPendingRuns retrieves all runs queued for processing, oldest first
func (r *runRepo) GetPendingRuns(ctx context.Context) ([]*models.ValidationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM validation_runs WHERE status = 'pending'
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.ValidationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkRunAsPending queues a valid, freshly uploaded run. Returns false if the run
// is invalid or already left the uploaded state.
func (r *runRepo) MarkRunAsPending(ctx context.Context, runID string) (bool, error) {
	query := `
		UPDATE validation_runs SET status = 'pending'
		WHERE id = $1 AND status = 'uploaded' AND is_valid
	`
	return r.execAffected(ctx, query, runID)
}

// MarkRunAsProcessing atomically claims a pending run
func (r *runRepo) MarkRunAsProcessing(ctx context.Context, runID string) (bool, error) {
	query := `
		UPDATE validation_runs SET status = 'processing', started_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	return r.execAffected(ctx, query, time.Now(), runID)
}

func (r *runRepo) execAffected(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// copyMessages streams findings into run_messages using the COPY protocol
func copyMessages(ctx context.Context, tx *sql.Tx, runID string, messages []models.Finding) error {
	if len(messages) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("run_messages",
		"run_id", "line_number", "severity", "message",
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range messages {
		if _, err := stmt.ExecContext(ctx, runID, m.Line, string(m.Severity), m.Message); err != nil {
			return fmt.Errorf("failed to buffer message: %w", err)
		}
	}

	// Flush the COPY buffer
	_, err = stmt.ExecContext(ctx)
	return err
}

// GetMessages retrieves findings for a run in the order they were produced
func (r *runRepo) GetMessages(ctx context.Context, runID string, limit int) ([]models.Finding, error) {
	query := `SELECT line_number, severity, message FROM run_messages WHERE run_id = $1 ORDER BY id`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Finding
	for rows.Next() {
		var m models.Finding
		var severity string
		if err := rows.Scan(&m.Line, &severity, &m.Message); err != nil {
			return nil, err
		}
		m.Severity = models.Severity(severity)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// List returns runs matching the filter, newest first
func (r *runRepo) List(ctx context.Context, filter models.HistoryFilter) ([]*models.ValidationRun, error) {
	var runs []*models.ValidationRun
	err := r.StreamAll(ctx, filter, func(run *models.ValidationRun) error {
		runs = append(runs, run)
		return nil
	})
	return runs, err
}

// StreamAll calls callback for each run matching the filter without buffering the result set
func (r *runRepo) StreamAll(ctx context.Context, filter models.HistoryFilter, callback func(*models.ValidationRun) error) error {
	query, args := buildHistoryQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return err
		}
		if err := callback(run); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountByStatus returns the number of runs in each status
func (r *runRepo) CountByStatus(ctx context.Context) (map[models.RunStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM validation_runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.RunStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.RunStatus(status)] = n
	}
	return counts, rows.Err()
}

// buildHistoryQuery mirrors models.HistoryFilter.Matches in SQL
func buildHistoryQuery(filter models.HistoryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(LOWER(id) LIKE $%d ESCAPE '\\' OR LOWER(location) LIKE $%d ESCAPE '\\' OR LOWER(satellite) LIKE $%d ESCAPE '\\')",
			n, n, n,
		))
	}
	if filter.Status != "" && filter.Status != "all" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + runColumns + ` FROM validation_runs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.ValidationRun, error) {
	var run models.ValidationRun
	var status string
	var headers pq.StringArray
	var accuracy, rmse, correlation, ndvi, sam sql.NullFloat64
	var failureReason, filePath, idempotencyKey sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.FileName, &run.FileSize, &run.Location, &run.Coordinates, &run.Satellite,
		&run.LandcoverType, &status, &headers, &run.TotalRows, &run.IsValid, &run.ErrorCount,
		&run.WarningCount, &accuracy, &rmse, &correlation, &ndvi, &sam, &run.DataPoints,
		&run.DurationMs, &failureReason, &filePath, &idempotencyKey, &run.CreatedAt,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	run.Headers = []string(headers)
	run.Metrics = models.Metrics{
		Accuracy:    floatPtr(accuracy),
		RMSE:        floatPtr(rmse),
		Correlation: floatPtr(correlation),
		NDVI:        floatPtr(ndvi),
		SAM:         floatPtr(sam),
	}
	run.FailureReason = failureReason.String
	run.FilePath = filePath.String
	run.IdempotencyKey = idempotencyKey.String
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
