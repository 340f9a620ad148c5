package snapshot

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/maltedev/parts-catalog-scraper/internal/scraper"
)

// Summary is the operator-facing account of a run.
type Summary struct {
	RunID              string
	StartURL           string
	PageLimit          int
	PagesVisited       int
	Outcome            string
	Reason             string
	Records            int
	ExtractionFailures int
	ImagesAcquired     int
	ImagesFailed       int
	ArtifactPath       string
	ManifestPath       string
	ArchiveURIs        []string
	Duration           time.Duration
}

func (s *Summary) applyCrawl(result *scraper.CrawlResult) {
	s.PagesVisited = result.PagesVisited
	s.Outcome = result.Outcome
	s.Reason = result.Reason
	s.Records = len(result.Parts)
	s.ExtractionFailures = len(result.Failures)
}

func (s *Summary) applyImages(assets []models.ImageAsset) {
	for _, a := range assets {
		if a.OK() {
			s.ImagesAcquired++
		} else {
			s.ImagesFailed++
		}
	}
}

// Status distinguishes a complete crawl from the different early endings.
func (s *Summary) Status() string {
	switch {
	case s.Outcome == scraper.OutcomeDone:
		return "done"
	case s.Reason == scraper.ReasonNoNextControl:
		return fmt.Sprintf("stopped early: no next page after page %d", s.PagesVisited)
	case s.Reason != "":
		return "aborted: " + strings.ReplaceAll(s.Reason, "_", " ")
	default:
		return "aborted"
	}
}

func (s *Summary) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", s.RunID)
	fmt.Fprintf(tw, "Outcome\t%s\n", s.Status())
	fmt.Fprintf(tw, "Pages scraped\t%d of %d\n", s.PagesVisited, s.PageLimit)
	fmt.Fprintf(tw, "Records extracted\t%d\n", s.Records)
	fmt.Fprintf(tw, "Cards skipped\t%d\n", s.ExtractionFailures)
	fmt.Fprintf(tw, "Images\t%d acquired, %d failed\n", s.ImagesAcquired, s.ImagesFailed)
	fmt.Fprintf(tw, "Report\t%s\n", s.ArtifactPath)
	if s.ManifestPath != "" {
		fmt.Fprintf(tw, "Manifest\t%s\n", s.ManifestPath)
	}
	for _, uri := range s.ArchiveURIs {
		fmt.Fprintf(tw, "Archived\t%s\n", uri)
	}
	fmt.Fprintf(tw, "Duration\t%s\n", s.Duration.Round(time.Millisecond))
	return tw.Flush()
}
