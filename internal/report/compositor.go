package report

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// Table column widths in millimeters on an A4 page.
const (
	colTime    = 25.0
	colRO      = 25.0
	colMethod  = 20.0
	colPhone   = 30.0
	colRating  = 20.0
	colComment = 30.0
	colPhotos  = 40.0

	rowHeight = 20.0
	// Rows that would cross this y trigger a page break with a fresh
	// table header.
	pageBreakY = 270.0
)

// Compositor renders feedback records into a paginated PDF report.
type Compositor struct{}

// NewCompositor creates a PDF report compositor.
func NewCompositor() *Compositor {
	return &Compositor{}
}

// Generate writes a report covering the given records to path. Records are
// rendered in the order given. Undecodable photos are omitted from the
// thumbnail strip without failing the document.
func (c *Compositor) Generate(records []model.Feedback, path string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	pdf.SetHeaderFunc(func() {
		pdf.SetFillColor(33, 37, 41)
		pdf.Rect(0, 0, 210, 30, "F")

		pdf.SetY(10)
		pdf.SetFont("Helvetica", "B", 18)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(0, 10, "Daily Feedback Report", "", 1, "C", false, 0, "")

		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(200, 200, 200)
		generated := fmt.Sprintf("Generated on: %s", time.Now().Format("January 02, 2006 at 15:04"))
		pdf.CellFormat(0, 5, generated, "", 1, "C", false, 0, "")
		pdf.Ln(15)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	c.writeSummary(pdf, records)
	c.writeTableHeader(pdf)

	fill := false
	for i := range records {
		c.writeRow(pdf, &records[i], fill)
		fill = !fill
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write report pdf: %w", err)
	}
	return nil
}

// writeSummary renders the totals and per-dimension averages. Averages only
// count records that carry the dimension, and an empty set yields 0.0
// rather than a division by zero.
func (c *Compositor) writeSummary(pdf *fpdf.Fpdf, records []model.Feedback) {
	var airSum, airCount, washSum, washCount int
	for i := range records {
		if r := records[i].RatingAir; r != nil {
			airSum += *r
			airCount++
		}
		if r := records[i].RatingWashroom; r != nil {
			washSum += *r
			washCount++
		}
	}
	avgAir, avgWash := 0.0, 0.0
	if airCount > 0 {
		avgAir = float64(airSum) / float64(airCount)
	}
	if washCount > 0 {
		avgWash = float64(washSum) / float64(washCount)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(33, 37, 41)
	pdf.CellFormat(0, 8, "Summary Overview", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(50, 6, fmt.Sprintf("Total Feedback: %d", len(records)), "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("Avg Air Rating: %.1f/3", avgAir), "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("Avg Washroom Rating: %.1f/3", avgWash), "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

func (c *Compositor) writeTableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(233, 236, 239)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetDrawColor(222, 226, 230)
	pdf.SetLineWidth(0.3)

	pdf.CellFormat(colTime, 8, "Time", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colRO, 8, "RO #", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colMethod, 8, "Method", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colPhone, 8, "Phone", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colRating, 8, "Ratings", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colComment, 8, "Comment", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colPhotos, 8, "Photos", "1", 1, "C", true, 0, "")
}

func (c *Compositor) writeRow(pdf *fpdf.Fpdf, f *model.Feedback, fill bool) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(50, 50, 50)
	if fill {
		pdf.SetFillColor(248, 249, 250)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}

	_, yStart := pdf.GetXY()
	if yStart+rowHeight > pageBreakY {
		pdf.AddPage()
		c.writeTableHeader(pdf)
		_, yStart = pdf.GetXY()
	}

	pdf.CellFormat(colTime, rowHeight, utils.FormatClock(f.CreatedAt), "1", 0, "C", fill, 0, "")
	pdf.CellFormat(colRO, rowHeight, orDash(f.RONumber), "1", 0, "C", fill, 0, "")
	pdf.CellFormat(colMethod, rowHeight, orDash(f.Method), "1", 0, "C", fill, 0, "")
	pdf.CellFormat(colPhone, rowHeight, utils.MaskPhone(f.Phone), "1", 0, "C", fill, 0, "")

	// Ratings cell: border only, then a two-line overlay.
	xRating := pdf.GetX()
	pdf.CellFormat(colRating, rowHeight, "", "1", 0, "C", fill, 0, "")
	pdf.SetXY(xRating, yStart)
	pdf.MultiCell(colRating, rowHeight/2, ratingsText(f), "", "C", false)
	pdf.SetXY(xRating+colRating, yStart)

	// Comment cell: border only, overlaid with a smaller wrapped font.
	xComment := pdf.GetX()
	pdf.CellFormat(colComment, rowHeight, "", "1", 0, "L", fill, 0, "")
	pdf.SetXY(xComment, yStart)
	pdf.SetFont("Helvetica", "", 7)
	pdf.MultiCell(colComment, 4, orDash(strings.TrimSpace(f.Comment)), "", "L", false)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(xComment+colComment, yStart)

	// Photos cell: three 12x18mm thumbnail slots.
	xPhotos := pdf.GetX()
	pdf.CellFormat(colPhotos, rowHeight, "", "1", 1, "C", fill, 0, "")

	c.placeThumb(pdf, f.PhotoAir, fmt.Sprintf("fb%d-air", f.ID), xPhotos+1, yStart+1)
	c.placeThumb(pdf, f.PhotoWashroom, fmt.Sprintf("fb%d-wash", f.ID), xPhotos+14, yStart+1)
	c.placeThumb(pdf, f.PhotoReceipt, fmt.Sprintf("fb%d-receipt", f.ID), xPhotos+27, yStart+1)
}

// placeThumb embeds an image into a 12x18mm slot. The bytes are decoded
// first because a bad image handed to the document would poison it with a
// sticky error.
func (c *Compositor) placeThumb(pdf *fpdf.Fpdf, img []byte, name string, x, y float64) {
	if len(img) == 0 {
		return
	}
	imageType, ok := sniffImageType(img)
	if !ok {
		return
	}
	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
	pdf.ImageOptions(name, x, y, 12, 18, false, opts, 0, "")
}

// sniffImageType verifies the bytes decode as an image and returns the
// format name the PDF encoder expects.
func sniffImageType(img []byte) (string, bool) {
	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", false
	}
	switch format {
	case "jpeg":
		return "JPEG", true
	case "png":
		return "PNG", true
	default:
		return "", false
	}
}

func ratingsText(f *model.Feedback) string {
	air := "Air: -"
	if f.RatingAir != nil {
		air = fmt.Sprintf("Air: %d/3", *f.RatingAir)
	}
	wash := "W/R: -"
	if f.RatingWashroom != nil {
		wash = fmt.Sprintf("W/R: %d/3", *f.RatingWashroom)
	}
	return air + "\n" + wash
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
