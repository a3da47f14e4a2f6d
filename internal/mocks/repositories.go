package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/repository"
)

// MockRunRepository is an in-memory implementation of RunRepository
type MockRunRepository struct {
	mu          sync.Mutex
	Runs        map[string]*models.ValidationRun
	Messages    map[string][]models.Finding
	CreateError error
	// MessagesError fails Create as a failed message insert would, leaving nothing stored
	MessagesError error
	UpdateCalls   int
}

// Verify interface compliance
var _ repository.RunRepository = (*MockRunRepository)(nil)

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{
		Runs:     make(map[string]*models.ValidationRun),
		Messages: make(map[string][]models.Finding),
	}
}

func (m *MockRunRepository) Create(ctx context.Context, run *models.ValidationRun, messages []models.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if m.MessagesError != nil && len(messages) > 0 {
		return m.MessagesError
	}
	if run.IdempotencyKey != "" {
		for _, existing := range m.Runs {
			if existing.IdempotencyKey == run.IdempotencyKey {
				return repository.ErrDuplicateIdempotencyKey
			}
		}
	}
	stored := *run
	m.Runs[run.ID] = &stored
	if len(messages) > 0 {
		m.Messages[run.ID] = append([]models.Finding(nil), messages...)
	}
	return nil
}

func (m *MockRunRepository) Update(ctx context.Context, run *models.ValidationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	stored := *run
	m.Runs[run.ID] = &stored
	return nil
}

func (m *MockRunRepository) GetByID(ctx context.Context, id string) (*models.ValidationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyOf(m.Runs[id]), nil
}

func (m *MockRunRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.ValidationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.Runs {
		if run.IdempotencyKey == key {
			return m.copyOf(run), nil
		}
	}
	return nil, nil
}

func (m *MockRunRepository) GetPendingRuns(ctx context.Context) ([]*models.ValidationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []*models.ValidationRun
	for _, run := range m.sorted(false) {
		if run.Status == models.RunStatusPending {
			runs = append(runs, m.copyOf(run))
		}
	}
	return runs, nil
}

func (m *MockRunRepository) MarkRunAsPending(ctx context.Context, runID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.Runs[runID]
	if !ok || !run.IsValid || run.Status != models.RunStatusUploaded {
		return false, nil
	}
	run.Status = models.RunStatusPending
	return true, nil
}

func (m *MockRunRepository) MarkRunAsProcessing(ctx context.Context, runID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.Runs[runID]
	if !ok || run.Status != models.RunStatusPending {
		return false, nil
	}
	run.Status = models.RunStatusProcessing
	return true, nil
}

func (m *MockRunRepository) GetMessages(ctx context.Context, runID string, limit int) ([]models.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	messages := m.Messages[runID]
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return append([]models.Finding(nil), messages...), nil
}

func (m *MockRunRepository) List(ctx context.Context, filter models.HistoryFilter) ([]*models.ValidationRun, error) {
	var runs []*models.ValidationRun
	err := m.StreamAll(ctx, filter, func(run *models.ValidationRun) error {
		runs = append(runs, run)
		return nil
	})
	return runs, err
}

func (m *MockRunRepository) StreamAll(ctx context.Context, filter models.HistoryFilter, callback func(*models.ValidationRun) error) error {
	m.mu.Lock()
	var matched []*models.ValidationRun
	for _, run := range m.sorted(true) {
		if filter.Matches(run) {
			matched = append(matched, m.copyOf(run))
		}
		if filter.Limit > 0 && len(matched) == filter.Limit {
			break
		}
	}
	m.mu.Unlock()

	for _, run := range matched {
		if err := callback(run); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockRunRepository) CountByStatus(ctx context.Context) (map[models.RunStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.RunStatus]int)
	for _, run := range m.Runs {
		counts[run.Status]++
	}
	return counts, nil
}

// Run returns a snapshot of a stored run for assertions
func (m *MockRunRepository) Run(id string) *models.ValidationRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyOf(m.Runs[id])
}

func (m *MockRunRepository) copyOf(run *models.ValidationRun) *models.ValidationRun {
	if run == nil {
		return nil
	}
	c := *run
	return &c
}

// sorted returns runs ordered by creation time, newest first when desc is set
func (m *MockRunRepository) sorted(desc bool) []*models.ValidationRun {
	runs := make([]*models.ValidationRun, 0, len(m.Runs))
	for _, run := range m.Runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		if desc {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs
}
