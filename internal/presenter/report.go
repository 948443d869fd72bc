package presenter

import (
	"bytes"
	"fmt"
	"math"

	"github.com/phpdave11/gofpdf"

	"taxieta/internal/modules/prediction"
)

var barColors = map[string][3]int{
	"teal": {0, 128, 128},
	"gray": {128, 128, 128},
}

// RenderPDF produces a one-page A4 report: result, comparison chart and the derived features.
func RenderPDF(p *prediction.Prediction) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("presenter: prediction is nil")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("NYC Taxi Trip Duration Prediction", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "NYC Taxi Trip Duration Prediction")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Prediction ID : "+p.ID.String())
	pdf.Ln(6)
	pdf.Cell(0, 6, "Created       : "+p.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Estimated Trip Duration: "+Summary(p.Result))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, Caption(p.Result))
	pdf.Ln(8)
	if p.Result.Degenerate {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, "The model returned a negative duration for these inputs; it was clamped to 0 seconds.", "", "", false)
		pdf.Ln(2)
	}

	chartTop := pdf.GetY() + 4
	drawChart(pdf, Comparison(p.Result.DurationSeconds, p.Average), 20, chartTop, 170, 80)
	pdf.SetY(chartTop + 90)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Input Summary")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, f := range p.Features.Ordered() {
		pdf.CellFormat(80, 6, f.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, formatValue(f.Value), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("presenter: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawChart(pdf *gofpdf.Fpdf, c Chart, x, y, w, h float64) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetXY(x, y)
	pdf.CellFormat(w, 6, c.Title, "", 0, "C", false, 0, "")

	top := y + 10
	plotH := h - 18
	base := top + plotH
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(x, top, x, base)
	pdf.Line(x, base, x+w, base)

	ymax := c.YMax
	if ymax <= 0 {
		ymax = 1
	}
	n := len(c.Bars)
	if n == 0 {
		return
	}
	slot := w / float64(n)
	barW := slot * 0.5
	pdf.SetFont("Helvetica", "", 9)
	for i, bar := range c.Bars {
		v := math.Min(math.Max(bar.Value, 0), ymax)
		bh := v / ymax * plotH
		bx := x + slot*float64(i) + (slot-barW)/2
		rgb, ok := barColors[bar.Color]
		if !ok {
			rgb = [3]int{64, 64, 64}
		}
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.Rect(bx, base-bh, barW, bh, "F")

		pdf.SetXY(bx, base-bh-6)
		pdf.CellFormat(barW, 5, bar.Text, "", 0, "C", false, 0, "")
		pdf.SetXY(bx, base+1)
		pdf.CellFormat(barW, 5, bar.Label, "", 0, "C", false, 0, "")
	}
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}
