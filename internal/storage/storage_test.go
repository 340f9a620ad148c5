package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *models.Snapshot {
	rows := []models.ReportRow{
		{
			Part:  &models.Part{PartNumber: "16510M68K00", PartName: "Oil Filter", PriceText: "₹ 245.00", ImageURL: "/img/a.png", Page: 1},
			Image: models.ImageAsset{Index: 0, LocalPath: "images/partImage_0.png"},
		},
		{
			Part:  &models.Part{PartNumber: "55200M79M00", PartName: "Brake Pad", PriceText: "₹ 1,020.00", ImageURL: "/img/b.png", Page: 2},
			Image: models.ImageAsset{Index: 1, Err: errors.New("unexpected status 404")},
		},
	}
	failures := []models.ExtractionFailure{{Page: 2, Card: 3, Field: "mrp", Err: errors.New("missing field: mrp")}}

	s := models.NewSnapshot("run-1", "https://parts.example.com", 2, rows, failures)
	s.PagesVisited = 2
	s.Outcome = "done"
	s.StartedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.FinishedAt = s.StartedAt.Add(time.Minute)
	return s
}

func TestManifestStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	store := NewManifestStore(path)

	require.NoError(t, store.Save(sampleSnapshot()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, 2, loaded.PagesVisited)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, "images/partImage_0.png", loaded.Entries[0].LocalPath)
	assert.Equal(t, "unexpected status 404", loaded.Entries[1].ImageError)
	require.Len(t, loaded.Failures, 1)
	assert.Equal(t, "mrp", loaded.Failures[0].Field)
	assert.Equal(t, "missing field: mrp", loaded.Failures[0].Message)
	assert.Equal(t, 1, loaded.ImagesAcquired())
}

func TestManifestStoreOverwrites(t *testing.T) {
	store := NewManifestStore(filepath.Join(t.TempDir(), "snapshot.json"))

	first := sampleSnapshot()
	require.NoError(t, store.Save(first))

	second := sampleSnapshot()
	second.RunID = "run-2"
	second.Entries = second.Entries[:1]
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "run-2", loaded.RunID)
	assert.Len(t, loaded.Entries, 1)
}

func TestManifestStoreLoadMissing(t *testing.T) {
	_, err := NewManifestStore(filepath.Join(t.TempDir(), "none.json")).Load()
	assert.True(t, os.IsNotExist(err))
}

func TestManifestStoreRejectsNil(t *testing.T) {
	assert.Error(t, NewManifestStore(filepath.Join(t.TempDir(), "s.json")).Save(nil))
}
