package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Test database not configured")
	}

	db, err := New(context.Background(), Config{URL: url})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func testSnapshot(runID string) *models.Snapshot {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Snapshot{
		RunID:        runID,
		StartURL:     "https://parts.example.com/genuine-parts",
		PageLimit:    2,
		PagesVisited: 2,
		Outcome:      "done",
		ArtifactPath: "parts.xlsx",
		Entries: []models.SnapshotEntry{
			{Index: 0, PartNumber: "16510M68K00", PartName: "Oil Filter", PriceText: "₹ 245.00", ImageURL: "https://cdn/a.png", Page: 1, LocalPath: "images/partImage_0.png"},
			{Index: 1, PartNumber: "55200M79M00", PartName: "Brake Pad", PriceText: "₹ 1,020.00", ImageURL: "https://cdn/b.png", Page: 2, ImageError: "unexpected status 404"},
		},
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
	}
}

func TestPartRows(t *testing.T) {
	runID := uuid.New()
	rows := partRows(runID, testSnapshot(runID.String()).Entries)

	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(partColumns))
	assert.Equal(t, runID, rows[0][0])
	assert.Equal(t, "16510M68K00", rows[0][2])

	local, ok := rows[0][7].(*string)
	require.True(t, ok)
	require.NotNil(t, local)
	assert.Equal(t, "images/partImage_0.png", *local)
	assert.Nil(t, rows[0][8].(*string))

	assert.Nil(t, rows[1][7].(*string))
	assert.Equal(t, "unexpected status 404", *rows[1][8].(*string))
}

func TestSnapshotRepository_SaveRejectsInvalidRunID(t *testing.T) {
	repo := NewSnapshotRepository(nil)
	err := repo.Save(context.Background(), testSnapshot("not-a-uuid"))
	assert.Error(t, err)
}

func TestSnapshotRepository_Save(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSnapshotRepository(db)
	runID := uuid.New().String()

	require.NoError(t, repo.Save(ctx, testSnapshot(runID)))

	count, err := repo.CountParts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	latest, outcome, err := repo.LatestOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, latest)
	assert.Equal(t, "done", outcome)

	t.Run("duplicate run id rolls back", func(t *testing.T) {
		err := repo.Save(ctx, testSnapshot(runID))
		assert.Error(t, err)

		count, err := repo.CountParts(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
