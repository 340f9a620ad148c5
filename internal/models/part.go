package models

import (
	"time"
)

// Part is one catalog entry scraped from a listing card.
type Part struct {
	PartNumber string `json:"part_number"`
	PartName   string `json:"part_name"`
	PriceText  string `json:"mrp"`
	ImageURL   string `json:"image_url"`
	Page       int    `json:"page"`
	Card       int    `json:"card"`
}

// ExtractionFailure records a card that was dropped because a required field was missing.
type ExtractionFailure struct {
	Page  int    `json:"page"`
	Card  int    `json:"card"`
	Field string `json:"field,omitempty"`
	Err   error  `json:"-"`
}

func (f ExtractionFailure) Error() string {
	if f.Err == nil {
		return "extraction failed"
	}
	return f.Err.Error()
}

// ImageAsset is the outcome of fetching one part image. Index is the position of the
// part in the crawl sequence; exactly one of LocalPath or Err is set.
type ImageAsset struct {
	Index     int    `json:"index"`
	SourceURL string `json:"source_url"`
	LocalPath string `json:"local_path,omitempty"`
	Err       error  `json:"-"`
}

func (a ImageAsset) OK() bool {
	return a.Err == nil && a.LocalPath != ""
}

// ReportRow is the unit consumed by the report builder.
type ReportRow struct {
	Part  *Part
	Image ImageAsset
}

// ZipRows pairs parts with their image assets by position.
func ZipRows(parts []*Part, assets []ImageAsset) []ReportRow {
	rows := make([]ReportRow, 0, len(parts))
	for i, part := range parts {
		row := ReportRow{Part: part}
		if i < len(assets) {
			row.Image = assets[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// Snapshot summarises one end-to-end run for the manifest and the optional sinks.
type Snapshot struct {
	RunID        string          `json:"run_id"`
	StartURL     string          `json:"start_url"`
	PageLimit    int             `json:"page_limit"`
	PagesVisited int             `json:"pages_visited"`
	Outcome      string          `json:"outcome"`
	AbortReason  string          `json:"abort_reason,omitempty"`
	ArtifactPath string          `json:"artifact_path"`
	Entries      []SnapshotEntry `json:"entries"`
	Failures     []FailureEntry  `json:"failures,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

type SnapshotEntry struct {
	Index      int    `json:"index"`
	PartNumber string `json:"part_number"`
	PartName   string `json:"part_name"`
	PriceText  string `json:"mrp"`
	ImageURL   string `json:"image_url"`
	Page       int    `json:"page"`
	LocalPath  string `json:"local_path,omitempty"`
	ImageError string `json:"image_error,omitempty"`
}

type FailureEntry struct {
	Page    int    `json:"page"`
	Card    int    `json:"card"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImagesAcquired counts entries with a local image.
func (s *Snapshot) ImagesAcquired() int {
	n := 0
	for _, e := range s.Entries {
		if e.ImageError == "" && e.LocalPath != "" {
			n++
		}
	}
	return n
}

func NewSnapshot(runID, startURL string, pageLimit int, rows []ReportRow, failures []ExtractionFailure) *Snapshot {
	s := &Snapshot{
		RunID:     runID,
		StartURL:  startURL,
		PageLimit: pageLimit,
		Entries:   make([]SnapshotEntry, 0, len(rows)),
	}
	for i, row := range rows {
		entry := SnapshotEntry{
			Index:      i,
			PartNumber: row.Part.PartNumber,
			PartName:   row.Part.PartName,
			PriceText:  row.Part.PriceText,
			ImageURL:   row.Part.ImageURL,
			Page:       row.Part.Page,
			LocalPath:  row.Image.LocalPath,
		}
		if row.Image.Err != nil {
			entry.ImageError = row.Image.Err.Error()
		}
		s.Entries = append(s.Entries, entry)
	}
	for _, f := range failures {
		s.Failures = append(s.Failures, FailureEntry{
			Page:    f.Page,
			Card:    f.Card,
			Field:   f.Field,
			Message: f.Error(),
		})
	}
	return s
}
