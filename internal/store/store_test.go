package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertylens/server/internal/models"
)

func newTestStore(t *testing.T) *Store {
	path := filepath.Join(t.TempDir(), "data", "history.db")
	s, err := NewStore(path, logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func searchRecord(postcode string, searchedAt time.Time) *models.SearchRecord {
	return &models.SearchRecord{
		SessionID:    "session-" + postcode,
		Postcode:     postcode,
		Locality:     "Westminster",
		Status:       "ready",
		ListingCount: 3,
		GrowthPct:    "+12.5%",
		SearchedAt:   searchedAt,
	}
}

func TestStoreRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Record(searchRecord("SW1A 1AA", now.Add(-2*time.Hour))))
	require.NoError(t, s.Record(searchRecord("E1 6AN", now.Add(-time.Hour))))
	require.NoError(t, s.Record(searchRecord("M1 1AE", now)))

	records, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "M1 1AE", records[0].Postcode)
	assert.Equal(t, "E1 6AN", records[1].Postcode)
}

func TestStoreRecentDefaultLimit(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Record(searchRecord("SW1A 1AA", time.Now().UTC())))

	records, err := s.Recent(0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "ready", records[0].Status)
	assert.Equal(t, 3, records[0].ListingCount)
}

func TestStorePrune(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Record(searchRecord("SW1A 1AA", now.AddDate(0, 0, -100))))
	require.NoError(t, s.Record(searchRecord("E1 6AN", now.AddDate(0, 0, -95))))
	require.NoError(t, s.Record(searchRecord("M1 1AE", now)))

	removed, err := s.Prune(now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	records, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "M1 1AE", records[0].Postcode)
}

func TestPrunerRemovesExpiredRecords(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Record(searchRecord("SW1A 1AA", now.Add(-2*time.Hour))))
	require.NoError(t, s.Record(searchRecord("M1 1AE", now)))

	pruner := NewPruner(s, time.Hour, 10*time.Millisecond, logrus.New())
	pruner.Start()
	defer pruner.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records, err := s.Recent(10)
		require.NoError(t, err)
		if len(records) == 1 {
			assert.Equal(t, "M1 1AE", records[0].Postcode)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expired record was never pruned")
}
