package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Bar is one labelled value of a bar chart, expected in [0, 1].
type Bar struct {
	Label string
	Value float64
}

const unicodeFamily = "unicode"

// PDFExporter renders datasets and charts into PDF documents.
type PDFExporter struct {
	fontFile string
}

// NewPDFExporter constructs a PDF exporter. fontFile optionally points at a TTF font with Hangul
// coverage; without it the core Arial font is used.
func NewPDFExporter(fontFile string) *PDFExporter {
	return &PDFExporter{fontFile: fontFile}
}

// HasUnicodeFont reports whether a TTF font was configured. Core Arial cannot render Hangul.
func (e *PDFExporter) HasUnicodeFont() bool {
	return e.fontFile != ""
}

func (e *PDFExporter) newDocument(orientation string) (*gofpdf.Fpdf, string) {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	family := "Arial"
	if e.fontFile != "" {
		pdf.AddUTF8Font(unicodeFamily, "", e.fontFile)
		pdf.AddUTF8Font(unicodeFamily, "B", e.fontFile)
		family = unicodeFamily
	}
	pdf.AddPage()
	return pdf, family
}

// Render creates a landscape PDF table with an optional title.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf, family := e.newDocument("L")

	if title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	width, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (width - left - right) / float64(len(data.Headers))

	pdf.SetFont(family, "B", 9)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// RenderBarChart draws one vertical bar per entry scaled to [0, 1], labelled with its percentage.
func (e *PDFExporter) RenderBarChart(title string, bars []Bar) ([]byte, error) {
	pdf, family := e.newDocument("L")

	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")

	width, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	const (
		chartTop    = 35.0
		chartHeight = 120.0
	)
	chartWidth := width - left - right
	baseline := chartTop + chartHeight

	pdf.SetDrawColor(80, 80, 80)
	pdf.Line(left, chartTop, left, baseline)
	pdf.Line(left, baseline, left+chartWidth, baseline)

	pdf.SetFont(family, "", 8)
	for _, tick := range []float64{0, 0.25, 0.5, 0.75, 1} {
		y := baseline - tick*chartHeight
		pdf.Text(left-8, y+1, fmt.Sprintf("%.0f%%", tick*100))
	}

	if len(bars) > 0 {
		slot := chartWidth / float64(len(bars))
		barWidth := slot * 0.6
		pdf.SetFillColor(66, 133, 244)
		for i, bar := range bars {
			value := clamp(bar.Value)
			x := left + float64(i)*slot + (slot-barWidth)/2
			height := value * chartHeight
			if height > 0 {
				pdf.Rect(x, baseline-height, barWidth, height, "F")
			}
			pdf.SetXY(x-2, baseline-height-6)
			pdf.CellFormat(barWidth+4, 5, fmt.Sprintf("%.1f%%", value*100), "", 0, "C", false, 0, "")
			pdf.SetXY(x-2, baseline+2)
			pdf.CellFormat(barWidth+4, 5, bar.Label, "", 0, "C", false, 0, "")
		}
	}

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
