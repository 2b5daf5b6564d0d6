package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficsim/internal/stats"
)

func record(id string, startedAt time.Time, total uint64) RunRecord {
	return NewRunRecord(id, "config.yaml", startedAt, stats.Snapshot{
		Elapsed:     5 * time.Minute,
		Total:       total,
		Success:     total,
		RPS:         float64(total) / 300,
		StatusCodes: map[int]uint64{200: total},
	})
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTemp(t)

	r := record("run-1", time.Now(), 1200)
	require.NoError(t, s.Save(r))

	got, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), got.Total)
	assert.Equal(t, "config.yaml", got.ConfigPath)
	assert.Equal(t, uint64(1200), got.StatusCodes[200])
	assert.InDelta(t, 4.0, got.RPS, 0.01)
}

func TestGetUnknownRun(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get("nope")
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	s := openTemp(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(record(
			[]string{"old", "mid", "new"}[i],
			base.Add(time.Duration(i)*time.Hour),
			uint64(i+1),
		)))
	}

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)
}

func TestSavePrunesOldRuns(t *testing.T) {
	s := openTemp(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxRuns+5; i++ {
		require.NoError(t, s.Save(record(
			fmt.Sprintf("run-%03d", i),
			base.Add(time.Duration(i)*time.Minute),
			uint64(i),
		)))
	}

	runs, err := s.List()
	require.NoError(t, err)
	assert.Len(t, runs, maxRuns)
	// The oldest entries are the ones pruned.
	assert.Equal(t, base.Add(time.Duration(maxRuns+4)*time.Minute), runs[0].StartedAt)
}
