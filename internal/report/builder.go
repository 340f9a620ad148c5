package report

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/parts-catalog-scraper/internal/models"
	"github.com/xuri/excelize/v2"
)

var Header = []string{"Part Number", "Part Name", "MRP", "Image"}

const imageColumn = "D"

type Options struct {
	SheetName        string
	ThumbnailPx      int
	RowHeight        float64
	ImageColumnWidth float64
	Placeholder      string
	Logger           *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		SheetName:        "Parts",
		ThumbnailPx:      100,
		RowHeight:        100,
		ImageColumnWidth: 30,
		Placeholder:      "image unavailable",
	}
}

// ArtifactWriteError means the report could not be persisted.
type ArtifactWriteError struct {
	Path string
	Err  error
}

func (e *ArtifactWriteError) Error() string {
	return fmt.Sprintf("failed to write report %s: %v", e.Path, e.Err)
}

func (e *ArtifactWriteError) Unwrap() error {
	return e.Err
}

type Builder struct {
	opts   Options
	logger *slog.Logger
}

func NewBuilder(opts Options) *Builder {
	defaults := DefaultOptions()
	if opts.SheetName == "" {
		opts.SheetName = defaults.SheetName
	}
	if opts.ThumbnailPx <= 0 {
		opts.ThumbnailPx = defaults.ThumbnailPx
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = defaults.RowHeight
	}
	if opts.ImageColumnWidth <= 0 {
		opts.ImageColumnWidth = defaults.ImageColumnWidth
	}
	if opts.Placeholder == "" {
		opts.Placeholder = defaults.Placeholder
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		opts:   opts,
		logger: logger.With("component", "report_builder"),
	}
}

// Build writes one sheet with the fixed header and one row per ReportRow, the
// image embedded and centred in column D. Rows whose image failed keep their
// text with a placeholder in column D. The file is written next to path and
// renamed into place.
func (b *Builder) Build(rows []models.ReportRow, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := b.opts.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return &ArtifactWriteError{Path: path, Err: err}
	}

	if err := b.layout(f, sheet, len(rows)); err != nil {
		return &ArtifactWriteError{Path: path, Err: err}
	}

	embedded := 0
	for i, row := range rows {
		ok, err := b.writeRow(f, sheet, i+2, row)
		if err != nil {
			return &ArtifactWriteError{Path: path, Err: fmt.Errorf("row %d: %w", i+2, err)}
		}
		if ok {
			embedded++
		}
	}

	if err := save(f, path); err != nil {
		return &ArtifactWriteError{Path: path, Err: err}
	}

	b.logger.Info("report written", "path", path, "rows", len(rows), "images", embedded, "placeholders", len(rows)-embedded)
	return nil
}

func (b *Builder) layout(f *excelize.File, sheet string, rows int) error {
	for i, h := range Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", "C", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, imageColumn, imageColumn, b.opts.ImageColumnWidth); err != nil {
		return err
	}

	if rows == 0 {
		return nil
	}

	textStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}
	imageStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	last := rows + 1
	if err := f.SetCellStyle(sheet, "A2", fmt.Sprintf("C%d", last), textStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, imageColumn+"2", fmt.Sprintf("%s%d", imageColumn, last), imageStyle); err != nil {
		return err
	}
	for r := 2; r <= last; r++ {
		if err := f.SetRowHeight(sheet, r, b.opts.RowHeight); err != nil {
			return err
		}
	}
	return nil
}

// writeRow reports whether the image was embedded.
func (b *Builder) writeRow(f *excelize.File, sheet string, r int, row models.ReportRow) (bool, error) {
	var values [3]string
	if row.Part != nil {
		values = [3]string{row.Part.PartNumber, row.Part.PartName, row.Part.PriceText}
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, r)
		if err != nil {
			return false, err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return false, err
		}
	}

	cell := fmt.Sprintf("%s%d", imageColumn, r)
	pic, err := b.picture(row.Image)
	if err != nil {
		b.logger.Warn("embedding placeholder", "row", r, "error", err)
		return false, f.SetCellValue(sheet, cell, b.opts.Placeholder)
	}
	if err := f.AddPictureFromBytes(sheet, cell, pic); err != nil {
		b.logger.Warn("embedding placeholder", "row", r, "error", err)
		return false, f.SetCellValue(sheet, cell, b.opts.Placeholder)
	}
	return true, nil
}

func (b *Builder) picture(asset models.ImageAsset) (*excelize.Picture, error) {
	if !asset.OK() {
		if asset.Err != nil {
			return nil, asset.Err
		}
		return nil, fmt.Errorf("no local image")
	}

	data, err := os.ReadFile(asset.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("image has no size")
	}

	longest := max(cfg.Width, cfg.Height)
	scale := float64(b.opts.ThumbnailPx) / float64(longest)
	thumbW := int(float64(cfg.Width) * scale)
	thumbH := int(float64(cfg.Height) * scale)

	return &excelize.Picture{
		Extension: strings.ToLower(filepath.Ext(asset.LocalPath)),
		File:      data,
		Format: &excelize.GraphicOptions{
			ScaleX:      scale,
			ScaleY:      scale,
			OffsetX:     max(0, (columnPixels(b.opts.ImageColumnWidth)-thumbW)/2),
			OffsetY:     max(0, (rowPixels(b.opts.RowHeight)-thumbH)/2),
			Positioning: "oneCell",
			AltText:     filepath.Base(asset.LocalPath),
		},
	}, nil
}

// columnPixels converts a column width in characters to pixels at the default font.
func columnPixels(width float64) int {
	return int(width*7 + 5)
}

// rowPixels converts a row height in points to pixels at 96 dpi.
func rowPixels(height float64) int {
	return int(height * 4 / 3)
}

func save(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	ext := filepath.Ext(path)
	tmp := filepath.Join(dir, "."+strings.TrimSuffix(filepath.Base(path), ext)+".tmp"+ext)
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
