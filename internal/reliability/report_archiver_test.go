package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	testutil "github.com/aristath/frontier/internal/testing"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]types.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(data)))})
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeStore) put(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = []byte("{}")
}

func TestReportArchiver_Archive(t *testing.T) {
	store := newFakeStore()
	archiver := NewReportArchiver(store, "/frontier/", zerolog.Nop())

	err := archiver.Archive(context.Background(), "run-1", testutil.NewReportFixture())
	require.NoError(t, err)

	keys := store.keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "frontier/"))
	assert.True(t, strings.HasSuffix(keys[0], "_run-1.json"))

	var doc struct {
		RunID     string `json:"run_id"`
		MaxSharpe []struct {
			Asset  string  `json:"asset"`
			Weight float64 `json:"weight"`
		} `json:"max_sharpe_allocations"`
		Report struct {
			Assets []string `json:"assets"`
		} `json:"report"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(store.objects[keys[0]])).Decode(&doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, []string{"AAPL", "MSFT", "BND"}, doc.Report.Assets)
	require.Len(t, doc.MaxSharpe, 3)
	assert.Equal(t, "AAPL", doc.MaxSharpe[0].Asset)
}

func TestReportArchiver_ArchiveError(t *testing.T) {
	store := newFakeStore()
	store.uploadErr = errors.New("bucket unavailable")
	archiver := NewReportArchiver(store, "frontier", zerolog.Nop())

	err := archiver.Archive(context.Background(), "run-1", testutil.NewReportFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestReportArchiver_NilIsNoop(t *testing.T) {
	var archiver *ReportArchiver

	assert.NoError(t, archiver.Archive(context.Background(), "run-1", testutil.NewReportFixture()))

	reports, err := archiver.List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, reports)

	deleted, err := archiver.Rotate(context.Background(), 7)
	assert.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestReportArchiver_List(t *testing.T) {
	store := newFakeStore()
	store.put("frontier/2024-01-10-080000_old.json")
	store.put("frontier/2024-01-18-120000_new.json")
	store.put("frontier/not-a-report.json")
	store.put("other/2024-01-19-120000_elsewhere.json")
	archiver := NewReportArchiver(store, "frontier", zerolog.Nop())

	reports, err := archiver.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "new", reports[0].RunID)
	assert.Equal(t, "old", reports[1].RunID)
	assert.Equal(t, time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC), reports[0].Timestamp)
	assert.Equal(t, int64(2), reports[0].SizeBytes)
}

func TestReportArchiver_Rotate(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	stamp := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(keyTimeLayout)
	}
	store.put("frontier/" + stamp(1) + "_a.json")
	store.put("frontier/" + stamp(40) + "_b.json")
	store.put("frontier/" + stamp(50) + "_c.json")
	store.put("frontier/" + stamp(60) + "_d.json")
	store.put("frontier/" + stamp(70) + "_e.json")
	archiver := NewReportArchiver(store, "frontier", zerolog.Nop())

	deleted, err := archiver.Rotate(context.Background(), 30)
	require.NoError(t, err)

	// The three newest survive even when past retention
	assert.Equal(t, 2, deleted)
	reports, err := archiver.List(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(reports))
	for i, r := range reports {
		ids[i] = r.RunID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestReportArchiver_RotateDisabled(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		store.put("frontier/" + time.Now().AddDate(0, 0, -100-i).Format(keyTimeLayout) + "_x" + string(rune('a'+i)) + ".json")
	}
	archiver := NewReportArchiver(store, "frontier", zerolog.Nop())

	deleted, err := archiver.Rotate(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 5)
}
