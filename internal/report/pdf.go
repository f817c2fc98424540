package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrImageName = "output-sha256"
	qrSizePx    = 256
)

// SaveSummaryPDF renders sum into a one-page PDF. When the output hash is
// known a QR code of it is placed under the hash table.
func SaveSummaryPDF(sum Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-AC3 Patch Report", false)
	pdf.SetAuthor("eac3fix", false)
	pdf.SetCreator("eac3fix", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "E-AC3 Patch Report")
	addSummarySection(pdf, sum)
	addHashSection(pdf, sum)
	if err := addQRSection(pdf, sum.OutputSHA256); err != nil {
		return err
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Input", value: emptyFallback(filepath.Base(sum.Input), "-")},
		{label: "Output", value: emptyFallback(filepath.Base(sum.Output), "-")},
		{label: "Frames patched", value: strconv.Itoa(sum.Frames)},
		{label: "Leading bytes trimmed", value: strconv.Itoa(sum.Trimmed)},
		{label: "Resyncs", value: strconv.Itoa(sum.Resyncs)},
		{label: "Channel map", value: emptyFallback(sum.Chanmap, "-")},
		{label: "Stream end", value: stopLabel(sum)},
		{label: "Duration", value: sum.Duration.Round(time.Millisecond).String()},
	}
	if !sum.CreatedAt.IsZero() {
		items = append(items, struct {
			label string
			value string
		}{label: "Created", value: sum.CreatedAt.Format(time.RFC3339)})
	}
	for _, item := range items {
		pdf.CellFormat(55, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addHashSection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Integrity")
	pdf.Ln(9)

	headers := []string{"File", "Bytes", "SHA-256"}
	widths := []float64{25, 25, 130}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Courier", "", 8)
	renderTableRow(pdf, widths, []string{"Input", strconv.FormatInt(sum.InputBytes, 10), sum.InputSHA256}, 5)
	renderTableRow(pdf, widths, []string{"Output", strconv.FormatInt(sum.OutputBytes, 10), sum.OutputSHA256}, 5)
	pdf.Ln(4)
}

// addQRSection places a QR code of the output digest under the hash table.
// Summaries without a digest get no QR.
func addQRSection(pdf *gofpdf.Fpdf, hash string) error {
	digits := hashDigits(hash)
	if digits == "" {
		return nil
	}
	png, err := qrcode.Encode(digits, qrcode.Medium, qrSizePx)
	if err != nil {
		return fmt.Errorf("qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, "Output SHA-256")
	pdf.Ln(6)
	pdf.ImageOptions(qrImageName, pdf.GetX(), pdf.GetY(), 35, 35, false, opts, 0, "")
	pdf.Ln(38)
	return nil
}

// hashDigits keeps the hex digits of hash, upper-cased so the QR encoder
// can use its denser alphanumeric mode.
func hashDigits(hash string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		case r >= 'a' && r <= 'f':
			return r - 'a' + 'A'
		}
		return -1
	}, hash)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func stopLabel(sum Summary) string {
	switch sum.Stop {
	case "", "end":
		return "complete"
	case "truncated-frame":
		return fmt.Sprintf("truncated frame at offset %d", sum.StopOffset)
	case "resync-exhausted":
		return fmt.Sprintf("sync lost at offset %d", sum.StopOffset)
	default:
		return sum.Stop
	}
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
