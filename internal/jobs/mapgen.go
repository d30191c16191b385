package jobs

import (
	"context"

	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
)

// MapGenerationProcessor is a placeholder until map tile generation moves
// into the job queue. It demonstrates the minimal processor shape.
type MapGenerationProcessor struct {
	logger *logger.Logger
}

// NewMapGenerationProcessor creates a new MapGenerationProcessor.
// Parameters:
//   - log: logger instance.
// Returns:
//   - *MapGenerationProcessor: initialized processor.
func NewMapGenerationProcessor(log *logger.Logger) *MapGenerationProcessor {
	return &MapGenerationProcessor{logger: log}
}

func (p *MapGenerationProcessor) Type() domain.BatchJobType {
	return domain.JobTypeMapGeneration
}

func (p *MapGenerationProcessor) Process(ctx context.Context, job *domain.BatchJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job.AppendLog("Map generation is not implemented yet.")
	summary := "Map generation is not implemented yet."
	job.ResultSummary = &summary
	return nil
}
