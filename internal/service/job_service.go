package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/groundtruth-intake-api/internal/config"
	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/repository"
	"github.com/groundtruth-intake-api/internal/session"
	"github.com/groundtruth-intake-api/internal/validation"
	"github.com/rs/zerolog"
)

// responseMessageLimit caps the findings embedded in a run response
const responseMessageLimit = 100

// jobService is the concrete implementation of JobService
type jobService struct {
	runRepo      repository.RunRepository
	processor    ProcessingService
	reducer      session.Reducer
	pollInterval time.Duration
	log          zerolog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
	// Semaphore: buffered channel to limit concurrent run processing
	sem chan struct{}
}

// newJobService creates a new JobService with a bounded worker pool
func newJobService(runRepo repository.RunRepository, processor ProcessingService, validator *validation.Validator, cfg config.ProcessingConfig, log zerolog.Logger) *jobService {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultWorkers()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	log.Info().Int("max_workers", maxWorkers).Dur("poll_interval", pollInterval).Msg("Initializing run processor worker pool")

	return &jobService{
		runRepo:      runRepo,
		processor:    processor,
		reducer:      session.NewReducer(validator),
		pollInterval: pollInterval,
		log:          log.With().Str("service", "job").Logger(),
		sem:          make(chan struct{}, maxWorkers),
	}
}

// defaultWorkers sizes the pool for I/O-bound work: NumCPU*4 clamped to [4, 32]
func defaultWorkers() int {
	n := runtime.NumCPU() * 4
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}

// StartProcessor runs the polling loop until ctx is cancelled or StopProcessor is called
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	procCtx := s.ctx
	// The loop itself is tracked so StopProcessor also waits for a dispatch in progress
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.log.Info().Msg("Run processor started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-procCtx.Done():
			s.log.Info().Msg("Run processor stopping")
			return
		case <-ticker.C:
			s.dispatch(procCtx, nil)
		}
	}
}

// StopProcessor cancels the polling loop and waits for in-flight runs
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Run processor stopped")
}

// ProcessPending claims every pending run and blocks until they are finished
func (s *jobService) ProcessPending(ctx context.Context) {
	var batch sync.WaitGroup
	s.dispatch(ctx, &batch)
	batch.Wait()
}

// dispatch claims pending runs and hands each to a worker goroutine
func (s *jobService) dispatch(ctx context.Context, batch *sync.WaitGroup) {
	runs, err := s.runRepo.GetPendingRuns(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending runs")
		return
	}

	for _, run := range runs {
		// Acquire a slot; blocks while all workers are busy
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		if ctx.Err() != nil {
			<-s.sem
			return
		}

		s.wg.Add(1)
		if batch != nil {
			batch.Add(1)
		}
		release := func() {
			<-s.sem
			if batch != nil {
				batch.Done()
			}
			s.wg.Done()
		}

		claimed, err := s.runRepo.MarkRunAsProcessing(ctx, run.ID)
		if err != nil || !claimed {
			release()
			continue // Another worker already picked it up
		}

		// Claimed while shutting down: hand the run straight back to the queue
		if ctx.Err() != nil {
			s.finish(ctx, run, session.UploadSession{}, nil)
			release()
			return
		}

		go func(r *models.ValidationRun) {
			defer release()

			defer func() {
				if p := recover(); p != nil {
					s.log.Error().
						Interface("panic", p).
						Str("run_id", r.ID).
						Msg("Run processing panicked - recovered")
					s.finish(ctx, r, session.UploadSession{
						FileName:  r.FileName,
						Rejection: fmt.Sprintf("processing panicked: %v", p),
					}, nil)
				}
			}()
			s.processRun(ctx, r)
		}(run)
	}
}

// processRun replays the upload session for the stored file through the
// reducer, hands the table to the processor and records the outcome
func (s *jobService) processRun(ctx context.Context, run *models.ValidationRun) {
	now := time.Now().UTC()
	run.Status = models.RunStatusProcessing
	run.StartedAt = &now

	s.log.Info().Str("run_id", run.ID).Str("file", run.FileName).Msg("Processing run")

	data, err := os.ReadFile(run.FilePath)
	if err != nil {
		s.finish(ctx, run, session.UploadSession{
			FileName:  run.FileName,
			Rejection: fmt.Sprintf("failed to read stored file: %v", err),
		}, nil)
		return
	}

	sess := s.reducer.Reduce(session.UploadSession{}, session.FileSelected{
		Name: run.FileName,
		Size: run.FileSize,
		Text: string(data),
	})
	sess = s.reducer.Reduce(sess, session.ProcessStarted{})
	if !sess.Processing {
		s.finish(ctx, run, rejected(sess), nil)
		return
	}

	result, err := s.processor.Process(ctx, sess.Table)
	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		sess = s.reducer.Reduce(sess, session.Reset{})
	case err != nil:
		sess = s.reducer.Reduce(sess, session.ProcessFailed{Reason: err.Error()})
	default:
		sess = s.reducer.Reduce(sess, session.ProcessCompleted{RunID: run.ID})
	}
	s.finish(ctx, run, sess, result)
}

// rejected explains why a stored file could not start processing
func rejected(sess session.UploadSession) session.UploadSession {
	if sess.Rejection != "" {
		return sess
	}
	reason := "stored file is not valid"
	if sess.Verdict != nil && len(sess.Verdict.Errors) > 0 {
		reason += ": " + strings.Join(sess.Verdict.Errors, "; ")
	}
	sess.Rejection = reason
	return sess
}

// finish persists the state the session ended in. A completed session completes
// the run, a reset session (shutdown) puts it back to pending, anything else fails it.
func (s *jobService) finish(ctx context.Context, run *models.ValidationRun, sess session.UploadSession, result *models.ProcessingResult) {
	completed := time.Now().UTC()
	if run.StartedAt != nil {
		run.DurationMs = completed.Sub(*run.StartedAt).Milliseconds()
	}

	switch {
	case sess.Complete && result != nil:
		run.Status = models.RunStatusCompleted
		run.DataPoints = result.DataPoints
		run.Metrics = result.Metrics
		run.CompletedAt = &completed
		s.log.Info().
			Str("run_id", run.ID).
			Int("data_points", run.DataPoints).
			Int64("duration_ms", run.DurationMs).
			Msg("Run processing completed")
	case sess.FileName == "" && sess.Rejection == "":
		run.Status = models.RunStatusPending
		run.StartedAt = nil
		run.DurationMs = 0
		s.log.Warn().Str("run_id", run.ID).Msg("Run processing cancelled due to shutdown")
	default:
		run.Status = models.RunStatusFailed
		run.FailureReason = sess.Rejection
		if run.FailureReason == "" {
			run.FailureReason = "processor returned no result"
		}
		run.CompletedAt = &completed
		s.log.Error().Str("run_id", run.ID).Str("reason", run.FailureReason).Msg("Run processing failed")
	}

	if err := s.runRepo.Update(context.WithoutCancel(ctx), run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to update run")
	}
}

// GetRun retrieves a run with its first findings
func (s *jobService) GetRun(ctx context.Context, id string) (*models.RunResponse, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	messages, err := s.runRepo.GetMessages(ctx, id, responseMessageLimit)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run messages")
	}

	response := &models.RunResponse{
		ValidationRun: *run,
		Messages:      messages,
	}
	if run.ErrorCount+run.WarningCount > 0 {
		response.MessageURL = "/v1/uploads/" + run.ID + "/messages"
	}

	return response, nil
}

// GetRunByIdempotencyKey retrieves a run by idempotency key
func (s *jobService) GetRunByIdempotencyKey(ctx context.Context, key string) (*models.ValidationRun, error) {
	return s.runRepo.GetByIdempotencyKey(ctx, key)
}

// GetRunMessages retrieves all findings for a run
func (s *jobService) GetRunMessages(ctx context.Context, id string) ([]models.Finding, error) {
	return s.runRepo.GetMessages(ctx, id, 0)
}
