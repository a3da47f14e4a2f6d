package mocks

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/service"
	"github.com/groundtruth-intake-api/internal/session"
)

// MockUploadService is a mock implementation of UploadService
type MockUploadService struct {
	InspectFunc func(ctx context.Context, fileName string, size int64, r io.Reader) (*session.UploadSession, error)
	CreateFunc  func(ctx context.Context, req *models.UploadRequest, r io.Reader) (*models.UploadResult, error)
	QueueFunc   func(ctx context.Context, runID string) (*models.ValidationRun, error)
	Requests    []*models.UploadRequest
	Queued      []string
}

// Verify interface compliance
var _ service.UploadService = (*MockUploadService)(nil)

func NewMockUploadService() *MockUploadService {
	return &MockUploadService{}
}

func (m *MockUploadService) Inspect(ctx context.Context, fileName string, size int64, r io.Reader) (*session.UploadSession, error) {
	if m.InspectFunc != nil {
		return m.InspectFunc(ctx, fileName, size, r)
	}
	return &session.UploadSession{FileName: fileName, FileSize: size}, nil
}

func (m *MockUploadService) CreateUpload(ctx context.Context, req *models.UploadRequest, r io.Reader) (*models.UploadResult, error) {
	m.Requests = append(m.Requests, req)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req, r)
	}
	return &models.UploadResult{
		Run: &models.ValidationRun{
			ID:             "VAL-TEST00000001",
			FileName:       req.FileName,
			Status:         models.RunStatusUploaded,
			IsValid:        true,
			IdempotencyKey: req.IdempotencyKey,
		},
		Table:   &models.ParsedTable{Headers: []string{}, PreviewRows: [][]string{}},
		Verdict: &models.ValidationVerdict{IsValid: true, Errors: []string{}, Warnings: []string{}},
	}, nil
}

func (m *MockUploadService) QueueProcessing(ctx context.Context, runID string) (*models.ValidationRun, error) {
	m.Queued = append(m.Queued, runID)
	if m.QueueFunc != nil {
		return m.QueueFunc(ctx, runID)
	}
	return &models.ValidationRun{ID: runID, Status: models.RunStatusPending}, nil
}

// MockProcessingService is a mock implementation of ProcessingService
type MockProcessingService struct {
	ProcessFunc func(ctx context.Context, table *models.ParsedTable) (*models.ProcessingResult, error)
}

// Verify interface compliance
var _ service.ProcessingService = (*MockProcessingService)(nil)

func (m *MockProcessingService) Process(ctx context.Context, table *models.ParsedTable) (*models.ProcessingResult, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, table)
	}
	return &models.ProcessingResult{DataPoints: table.TotalRowCount}, nil
}

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	mu       sync.Mutex
	Runs     map[string]*models.RunResponse
	Messages map[string][]models.Finding
	Started  bool
}

// Verify interface compliance
var _ service.JobService = (*MockJobService)(nil)

func NewMockJobService() *MockJobService {
	return &MockJobService{
		Runs:     make(map[string]*models.RunResponse),
		Messages: make(map[string][]models.Finding),
	}
}

func (m *MockJobService) StartProcessor(ctx context.Context) {
	m.mu.Lock()
	m.Started = true
	m.mu.Unlock()
}

func (m *MockJobService) StopProcessor() {}

func (m *MockJobService) ProcessPending(ctx context.Context) {}

func (m *MockJobService) GetRun(ctx context.Context, id string) (*models.RunResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Runs[id], nil
}

func (m *MockJobService) GetRunByIdempotencyKey(ctx context.Context, key string) (*models.ValidationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.Runs {
		if run.IdempotencyKey == key {
			r := run.ValidationRun
			return &r, nil
		}
	}
	return nil, nil
}

func (m *MockJobService) GetRunMessages(ctx context.Context, id string) ([]models.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Messages[id], nil
}

// MockHistoryService is a mock implementation of HistoryService
type MockHistoryService struct {
	Runs       []*models.ValidationRun
	Counts     map[models.RunStatus]int
	StreamFunc func(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter, format string) error
	Filters    []models.HistoryFilter
}

// Verify interface compliance
var _ service.HistoryService = (*MockHistoryService)(nil)

func NewMockHistoryService() *MockHistoryService {
	return &MockHistoryService{
		Runs:   []*models.ValidationRun{},
		Counts: map[models.RunStatus]int{},
	}
}

func (m *MockHistoryService) List(ctx context.Context, filter models.HistoryFilter) ([]*models.ValidationRun, error) {
	m.Filters = append(m.Filters, filter)
	runs := []*models.ValidationRun{}
	for _, run := range m.Runs {
		if filter.Matches(run) {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (m *MockHistoryService) Stream(ctx context.Context, w http.ResponseWriter, filter models.HistoryFilter, format string) error {
	m.Filters = append(m.Filters, filter)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, w, filter, format)
	}
	return nil
}

func (m *MockHistoryService) CountByStatus(ctx context.Context) (map[models.RunStatus]int, error) {
	return m.Counts, nil
}
