package runs

import (
	"context"
	"errors"
	"testing"

	testingpkg "github.com/aristath/frontier/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SavesAndArchives(t *testing.T) {
	repo := newTestRepository(t)
	archiver := testingpkg.NewMockReportArchiver()
	recorder := NewRecorder(repo, archiver, zerolog.Nop())

	report := testingpkg.NewReportFixture()
	id, err := recorder.Record(context.Background(), report)
	require.NoError(t, err)

	archived, ok := archiver.Archived(id)
	require.True(t, ok)
	assert.Same(t, report, archived)

	_, err = repo.Get(context.Background(), id)
	assert.NoError(t, err)
}

func TestRecorder_ArchiveFailureIsNotFatal(t *testing.T) {
	repo := newTestRepository(t)
	archiver := testingpkg.NewMockReportArchiver()
	archiver.SetError(errors.New("bucket unavailable"))

	id, err := NewRecorder(repo, archiver, zerolog.Nop()).Record(context.Background(), testingpkg.NewReportFixture())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 0, archiver.Count())
}

func TestRecorder_WithoutArchiver(t *testing.T) {
	repo := newTestRepository(t)

	_, err := NewRecorder(repo, nil, zerolog.Nop()).Record(context.Background(), testingpkg.NewReportFixture())
	assert.NoError(t, err)
}
