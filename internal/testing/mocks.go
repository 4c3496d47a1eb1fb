package testing

import (
	"context"
	"sync"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// MockReportArchiver records archived reports instead of uploading them.
type MockReportArchiver struct {
	mu       sync.Mutex
	archived map[string]*optimization.Report
	err      error
}

// NewMockReportArchiver creates a new mock archiver
func NewMockReportArchiver() *MockReportArchiver {
	return &MockReportArchiver{archived: make(map[string]*optimization.Report)}
}

// SetError makes every subsequent Archive call fail with err
func (m *MockReportArchiver) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Archive records the report under runID
func (m *MockReportArchiver) Archive(ctx context.Context, runID string, report *optimization.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.archived[runID] = report
	return nil
}

// Archived returns the report archived under runID, if any
func (m *MockReportArchiver) Archived(runID string) (*optimization.Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.archived[runID]
	return report, ok
}

// Count returns the number of archived reports
func (m *MockReportArchiver) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.archived)
}
