package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
)

// Required card fields, named as they appear in failure reports.
const (
	FieldPartNumber = "partNumber"
	FieldPartName   = "partName"
	FieldPrice      = "mrp"
	FieldImageURL   = "imageUrl"
)

type Parser interface {
	ExtractPart(card *goquery.Selection) (*models.Part, error)
	ParsePage(html string, page int) ([]*models.Part, []models.ExtractionFailure, error)
}

// MissingFieldError is returned when a card lacks one of the required fields.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Field)
}
