package service

import (
	"context"
	"time"

	"github.com/groundtruth-intake-api/internal/models"
	"github.com/rs/zerolog"
)

// simulatedProcessor stands in for the satellite comparison backend. It waits
// for the configured delay and reports the row count without metrics.
type simulatedProcessor struct {
	delay time.Duration
	log   zerolog.Logger
}

// NewSimulatedProcessor creates a ProcessingService that sleeps for delay
func NewSimulatedProcessor(delay time.Duration, log zerolog.Logger) ProcessingService {
	return &simulatedProcessor{
		delay: delay,
		log:   log.With().Str("service", "processing").Logger(),
	}
}

// Process waits for the simulated delay and reports the data row count
func (p *simulatedProcessor) Process(ctx context.Context, table *models.ParsedTable) (*models.ProcessingResult, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	p.log.Debug().Int("data_points", table.TotalRowCount).Dur("delay", p.delay).Msg("Simulated processing finished")

	return &models.ProcessingResult{
		DataPoints: table.TotalRowCount,
	}, nil
}
