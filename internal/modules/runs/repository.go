package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Repository handles CRUD operations for frontier runs
// Database: runs.db (frontier_runs table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

const summaryColumns = `id, created_at, assets, risk_free_rate, sharpe_ratio,
	max_sharpe_return, max_sharpe_volatility, min_variance_return, min_variance_volatility,
	frontier_points, converged_points, duration_ms`

// Save stores a report and returns the id of the new run.
func (r *Repository) Save(ctx context.Context, report *optimization.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("cannot save nil report")
	}
	// Assets are stored comma-separated.
	for _, asset := range report.Assets {
		if strings.ContainsRune(asset, ',') {
			return "", fmt.Errorf("cannot save report: asset %q contains a comma", asset)
		}
	}

	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	payload, err := msgpack.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	id := uuid.New().String()
	s := summarize(id, report)

	done := utils.MeasureDBQuery("insert_frontier_run", r.log)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO frontier_runs
		(`+summaryColumns+`, asset_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.CreatedAt.Unix(),
		strings.Join(s.Assets, ","),
		s.RiskFreeRate,
		s.SharpeRatio,
		s.MaxSharpeReturn,
		s.MaxSharpeVolatility,
		s.MinVarianceReturn,
		s.MinVarianceVolatility,
		s.FrontierPoints,
		s.ConvergedPoints,
		s.DurationMs,
		len(s.Assets),
		payload,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil {
		done(affected)
	}

	r.log.Debug().
		Str("run_id", id).
		Int("assets", len(s.Assets)).
		Int("payload_bytes", len(payload)).
		Msg("Saved frontier run")

	return id, nil
}

// Get returns the run with the given id, or ErrRunNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`, payload
		FROM frontier_runs
		WHERE id = ?
	`, id)

	var payload []byte
	s, err := scanSummary(row, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	var report optimization.Report
	if err := msgpack.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}

	return &Run{Summary: s, Report: &report}, nil
}

// List returns run summaries, newest first. A non-positive limit uses the default.
func (r *Repository) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	done := utils.MeasureDBQuery("list_frontier_runs", r.log)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM frontier_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	done(int64(len(summaries)))

	return summaries, nil
}

// Delete removes the run with the given id, or returns ErrRunNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM frontier_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	r.log.Info().Str("run_id", id).Msg("Deleted frontier run")
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scanner, extra ...interface{}) (Summary, error) {
	var (
		s         Summary
		createdAt int64
		assets    string
	)
	dest := []interface{}{
		&s.ID,
		&createdAt,
		&assets,
		&s.RiskFreeRate,
		&s.SharpeRatio,
		&s.MaxSharpeReturn,
		&s.MaxSharpeVolatility,
		&s.MinVarianceReturn,
		&s.MinVarianceVolatility,
		&s.FrontierPoints,
		&s.ConvergedPoints,
		&s.DurationMs,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Summary{}, err
	}

	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	if assets != "" {
		s.Assets = strings.Split(assets, ",")
	}
	return s, nil
}
