package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/parts-catalog-scraper/internal/models"
)

const DefaultCardSelector = "div.sliderBox"

type CatalogParser struct {
	cardSelector string
}

func NewCatalogParser(cardSelector string) *CatalogParser {
	if cardSelector == "" {
		cardSelector = DefaultCardSelector
	}
	return &CatalogParser{cardSelector: cardSelector}
}

// ExtractPart reads the four required fields from a single card. The part number
// is the first <strong> inside the first <p>, the name the first <h3>, the price
// the first div.price and the image the src of the first <img>.
func (p *CatalogParser) ExtractPart(card *goquery.Selection) (*models.Part, error) {
	return ExtractPart(card)
}

func ExtractPart(card *goquery.Selection) (*models.Part, error) {
	strong := card.Find("p").First().Find("strong").First()
	if strong.Length() == 0 || strings.TrimSpace(strong.Text()) == "" {
		return nil, &MissingFieldError{Field: FieldPartNumber}
	}

	heading := card.Find("h3").First()
	name := strings.TrimSpace(heading.Text())
	if heading.Length() == 0 || name == "" {
		return nil, &MissingFieldError{Field: FieldPartName}
	}

	priceEl := card.Find("div.price").First()
	price := strings.TrimSpace(priceEl.Text())
	if priceEl.Length() == 0 || price == "" {
		return nil, &MissingFieldError{Field: FieldPrice}
	}

	src, ok := card.Find("img").First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return nil, &MissingFieldError{Field: FieldImageURL}
	}

	return &models.Part{
		PartNumber: strong.Text(),
		PartName:   name,
		PriceText:  price,
		ImageURL:   strings.TrimSpace(src),
	}, nil
}

// ParsePage extracts every card on a rendered page in document order. Cards that
// fail extraction are returned as failures; they never abort the page.
func (p *CatalogParser) ParsePage(html string, page int) ([]*models.Part, []models.ExtractionFailure, error) {
	return ParseCatalogPage(html, p.cardSelector, page)
}

func ParseCatalogPage(html, cardSelector string, page int) ([]*models.Part, []models.ExtractionFailure, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		parts    []*models.Part
		failures []models.ExtractionFailure
	)
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		part, err := ExtractPart(card)
		if err != nil {
			failure := models.ExtractionFailure{Page: page, Card: i, Err: err}
			var missing *MissingFieldError
			if errors.As(err, &missing) {
				failure.Field = missing.Field
			}
			failures = append(failures, failure)
			return
		}
		part.Page = page
		part.Card = i
		parts = append(parts, part)
	})

	return parts, failures, nil
}

// CardsFingerprint hashes the outer HTML of all cards so a re-render of the
// listing can be detected.
func CardsFingerprint(html, cardSelector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	h := sha256.New()
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		outer, err := goquery.OuterHtml(card)
		if err != nil {
			return
		}
		h.Write([]byte(outer))
	})
	return hex.EncodeToString(h.Sum(nil)), nil
}
