package report

import (
	"bytes"
	"fmt"

	"github.com/forPelevin/gomoji"
	"github.com/go-pdf/fpdf"
	"github.com/helpcomp/finsight/analysis"
)

const (
	margin     = 40.0
	lineHeight = 14.0
)

var columnWidths = []float64{250, 150}

// Renderer writes documents as A4 PDFs with core fonts.
type Renderer struct {
	Title string
	// Compress controls PDF stream compression.
	Compress bool
}

func NewRenderer(title string) *Renderer {
	return &Renderer{Title: title, Compress: true}
}

// Report builds and renders rec in one go.
func (r *Renderer) Report(rec analysis.Record) ([]byte, error) {
	return r.Render(Build(r.Title, rec))
}

// Render serializes doc to PDF bytes.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	pdf := r.layout(doc)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("report: layout: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) layout(doc Document) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("FinSight", false)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if tr == nil || pdf.Err() {
		pdf.ClearError()
		tr = func(s string) string { return s }
	}
	// core fonts cannot draw emoji
	text := func(s string) string {
		if gomoji.ContainsEmoji(s) {
			s = gomoji.RemoveEmojis(s)
		}
		return tr(s)
	}

	pdf.AddPage()
	for _, b := range doc.Blocks {
		switch b.Kind {
		case KindTitle:
			pdf.SetFont("Helvetica", "B", 18)
			pdf.MultiCell(0, 22, text(b.Text), "", "C", false)
		case KindHeading:
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 18, text(b.Text), "", "L", false)
		case KindParagraph:
			pdf.SetFont("Helvetica", "", 10)
			pdf.Write(lineHeight, text(b.Text))
			if b.Strong != "" {
				pdf.SetFont("Helvetica", "B", 10)
				pdf.Write(lineHeight, tr(b.Strong))
			}
			pdf.Ln(lineHeight)
		case KindSpacer:
			pdf.Ln(b.Height)
		case KindTable:
			drawTable(pdf, b, text, tr)
		case KindBullet:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, lineHeight, text(b.Text), "", "L", false)
		}
	}
	return pdf
}

// drawTable draws a centered grid with a grey header row and right-aligned
// amounts.
func drawTable(pdf *fpdf.Fpdf, b Block, text, amount func(string) string) {
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	tableWidth := 0.0
	for _, w := range columnWidths {
		tableWidth += w
	}
	x := left + (pageWidth-left-right-tableWidth)/2

	pdf.SetDrawColor(128, 128, 128)
	pdf.SetFillColor(211, 211, 211)
	pdf.SetLineWidth(1)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetX(x)
	for i, h := range b.Header {
		pdf.CellFormat(columnWidths[i], 24, text(h), "1", 0, "LT", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range b.Rows {
		pdf.SetX(x)
		for i, cell := range row {
			align, s := "L", text(cell)
			if i > 0 {
				align, s = "R", amount(cell)
			}
			pdf.CellFormat(columnWidths[i], 18, fit(pdf, s, columnWidths[i]-4), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(0, 0, 0)
}

// fit shortens s until it fits in width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	const ellipsis = "..."
	for len(s) > 0 && pdf.GetStringWidth(s+ellipsis) > width {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}
