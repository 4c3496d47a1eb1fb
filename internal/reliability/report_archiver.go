// Package reliability keeps copies of frontier runs off the host and maintains the local database.
package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// ObjectStore is the bucket API the archiver needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchivedReport describes a report stored in the bucket
type ArchivedReport struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// ReportArchiver uploads JSON renderings of frontier reports.
// A nil *ReportArchiver is valid and does nothing.
type ReportArchiver struct {
	store  ObjectStore
	prefix string
	log    zerolog.Logger
}

// archivedDocument is what gets written to the bucket
type archivedDocument struct {
	RunID       string                    `json:"run_id"`
	ArchivedAt  time.Time                 `json:"archived_at"`
	MaxSharpe   []optimization.Allocation `json:"max_sharpe_allocations"`
	MinVariance []optimization.Allocation `json:"min_variance_allocations"`
	Report      *optimization.Report      `json:"report"`
}

const (
	keyTimeLayout     = "2006-01-02-150405"
	minReportsToKeep  = 3
	reportContentType = "application/json"
)

// NewReportArchiver creates a new report archiver
func NewReportArchiver(store ObjectStore, prefix string, log zerolog.Logger) *ReportArchiver {
	return &ReportArchiver{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("service", "report_archiver").Logger(),
	}
}

// key layout: <prefix>/<timestamp>_<run id>.json
func (a *ReportArchiver) key(runID string, ts time.Time) string {
	return path.Join(a.prefix, fmt.Sprintf("%s_%s.json", ts.UTC().Format(keyTimeLayout), runID))
}

// Archive uploads the report under runID
func (a *ReportArchiver) Archive(ctx context.Context, runID string, report *optimization.Report) error {
	if a == nil {
		return nil
	}
	if report == nil {
		return fmt.Errorf("cannot archive nil report")
	}

	now := time.Now().UTC()
	doc := archivedDocument{
		RunID:       runID,
		ArchivedAt:  now,
		MaxSharpe:   report.Allocations(report.MaxSharpe.Weights),
		MinVariance: report.Allocations(report.MinVariance.Weights),
		Report:      report,
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", runID, err)
	}

	key := a.key(runID, now)
	if err := a.store.Upload(ctx, key, bytes.NewReader(body), reportContentType); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", runID, err)
	}

	a.log.Info().
		Str("run_id", runID).
		Str("key", key).
		Int("size_bytes", len(body)).
		Msg("Archived frontier report")
	return nil
}

// List returns archived reports, newest first
func (a *ReportArchiver) List(ctx context.Context) ([]ArchivedReport, error) {
	if a == nil {
		return nil, nil
	}

	objects, err := a.store.List(ctx, a.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list archived reports: %w", err)
	}

	now := time.Now()
	reports := make([]ArchivedReport, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		// Parse timestamp and run id from <prefix>/2024-01-18-120000_<run id>.json
		name := strings.TrimSuffix(path.Base(*obj.Key), ".json")
		stamp, runID, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		timestamp, err := time.Parse(keyTimeLayout, stamp)
		if err != nil {
			a.log.Warn().Str("key", *obj.Key).Msg("Failed to parse timestamp from key")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		reports = append(reports, ArchivedReport{
			Key:       *obj.Key,
			RunID:     runID,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

// Rotate deletes reports older than retentionDays, always keeping the newest few.
// A retention of 0 keeps everything.
func (a *ReportArchiver) Rotate(ctx context.Context, retentionDays int) (int, error) {
	if a == nil || retentionDays <= 0 {
		return 0, nil
	}

	reports, err := a.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(reports) <= minReportsToKeep {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, report := range reports[minReportsToKeep:] {
		if !report.Timestamp.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, report.Key); err != nil {
			a.log.Error().Err(err).Str("key", report.Key).Msg("Failed to delete old report")
			continue
		}
		deleted++
	}

	a.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(reports)-deleted).
		Msg("Report archive rotation completed")
	return deleted, nil
}
