package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
)

var partColumns = []string{
	"run_id", "position", "part_number", "part_name", "mrp",
	"image_url", "page", "local_path", "image_error",
}

// SnapshotRepository stores run snapshots and their parts
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save writes the snapshot header and all of its parts in one transaction.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.Snapshot) error {
	runID, err := uuid.Parse(snapshot.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", snapshot.RunID, err)
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO catalog_snapshots (
				run_id, start_url, page_limit, pages_visited, outcome,
				abort_reason, artifact_path, parts_count, images_acquired,
				failures_count, started_at, finished_at
			) VALUES (
				$1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12
			)`

		_, err := tx.Exec(ctx, query,
			runID,
			snapshot.StartURL,
			snapshot.PageLimit,
			snapshot.PagesVisited,
			snapshot.Outcome,
			snapshot.AbortReason,
			snapshot.ArtifactPath,
			len(snapshot.Entries),
			snapshot.ImagesAcquired(),
			len(snapshot.Failures),
			snapshot.StartedAt,
			snapshot.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		if len(snapshot.Entries) == 0 {
			return nil
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"catalog_parts"}, partColumns, pgx.CopyFromRows(partRows(runID, snapshot.Entries)))
		if err != nil {
			return fmt.Errorf("failed to copy parts: %w", err)
		}
		if int(n) != len(snapshot.Entries) {
			return fmt.Errorf("copied %d of %d parts", n, len(snapshot.Entries))
		}
		return nil
	})
}

// CountParts returns the number of stored parts for a run.
func (r *SnapshotRepository) CountParts(ctx context.Context, runID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM catalog_parts WHERE run_id = $1`

	if err := r.db.QueryRow(ctx, query, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count parts: %w", err)
	}
	return count, nil
}

// LatestOutcome returns the run id and outcome of the most recent snapshot.
func (r *SnapshotRepository) LatestOutcome(ctx context.Context) (string, string, error) {
	var (
		runID   uuid.UUID
		outcome string
	)
	query := `
		SELECT run_id, outcome
		FROM catalog_snapshots
		ORDER BY finished_at DESC
		LIMIT 1`

	if err := r.db.QueryRow(ctx, query).Scan(&runID, &outcome); err != nil {
		return "", "", fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return runID.String(), outcome, nil
}

func partRows(runID uuid.UUID, entries []models.SnapshotEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			runID,
			e.Index,
			e.PartNumber,
			e.PartName,
			e.PriceText,
			e.ImageURL,
			e.Page,
			nullable(e.LocalPath),
			nullable(e.ImageError),
		})
	}
	return rows
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
