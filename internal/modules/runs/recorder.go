package runs

import (
	"context"
	"fmt"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// Archiver copies a saved report to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, runID string, report *optimization.Report) error
}

// Recorder saves reports and hands them to the archiver.
// Archive failures are logged, never returned: the run is already stored.
type Recorder struct {
	repo     *Repository
	archiver Archiver
	log      zerolog.Logger
}

// NewRecorder creates a new recorder. archiver may be nil.
func NewRecorder(repo *Repository, archiver Archiver, log zerolog.Logger) *Recorder {
	return &Recorder{
		repo:     repo,
		archiver: archiver,
		log:      log.With().Str("component", "run_recorder").Logger(),
	}
}

// Record stores the report and returns the new run id.
func (r *Recorder) Record(ctx context.Context, report *optimization.Report) (string, error) {
	id, err := r.repo.Save(ctx, report)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, id, report); err != nil {
			r.log.Warn().Err(err).Str("run_id", id).Msg("Failed to archive run")
		}
	}
	return id, nil
}
