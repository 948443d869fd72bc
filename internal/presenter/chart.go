package presenter

import (
	"fmt"
	"html"
	"math"
	"strings"
)

const (
	chartTitle  = "Trip Duration Comparison"
	chartYLabel = "Duration (seconds)"
	// chartHeadroom is added above the taller bar so its label fits.
	chartHeadroom = 300.0
	labelOffset   = 20.0

	LabelPredicted = "Predicted"
	LabelAverage   = "NYC Average"
)

type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
	// Text is drawn above the bar, "<int(value)>s".
	Text string `json:"text"`
}

type Chart struct {
	Title  string  `json:"title"`
	YLabel string  `json:"y_label"`
	YMax   float64 `json:"y_max"`
	Bars   []Bar   `json:"bars"`
}

// Comparison builds the two-bar predicted vs. reference chart.
func Comparison(predicted, average float64) Chart {
	return Chart{
		Title:  chartTitle,
		YLabel: chartYLabel,
		YMax:   math.Max(predicted, average) + chartHeadroom,
		Bars: []Bar{
			{Label: LabelPredicted, Value: predicted, Color: "teal", Text: barText(predicted)},
			{Label: LabelAverage, Value: average, Color: "gray", Text: barText(average)},
		},
	}
}

func barText(v float64) string {
	return fmt.Sprintf("%.0fs", math.Trunc(v))
}

const (
	svgWidth   = 480.0
	svgHeight  = 360.0
	plotLeft   = 70.0
	plotRight  = 20.0
	plotTop    = 40.0
	plotBottom = 40.0
)

// RenderSVG draws c as a standalone SVG document with a y axis from 0 to YMax.
func RenderSVG(c Chart) string {
	plotW := svgWidth - plotLeft - plotRight
	plotH := svgHeight - plotTop - plotBottom
	ymax := c.YMax
	if ymax <= 0 {
		ymax = 1
	}
	y := func(v float64) float64 { return plotTop + plotH - v/ymax*plotH }

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" font-family="sans-serif">`,
		svgWidth, svgHeight, svgWidth, svgHeight)
	fmt.Fprintf(&b, `<text x="%.1f" y="24" text-anchor="middle" font-size="16">%s</text>`, svgWidth/2, html.EscapeString(c.Title))
	fmt.Fprintf(&b, `<text transform="translate(18,%.1f) rotate(-90)" text-anchor="middle" font-size="12">%s</text>`,
		plotTop+plotH/2, html.EscapeString(c.YLabel))

	// axes
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black"/>`, plotLeft, plotTop, plotLeft, plotTop+plotH)
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black"/>`, plotLeft, plotTop+plotH, plotLeft+plotW, plotTop+plotH)
	for _, tick := range ticks(ymax) {
		ty := y(tick)
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="black"/>`, plotLeft-4, ty, plotLeft, ty)
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="end" font-size="10">%.0f</text>`, plotLeft-6, ty+3, tick)
	}

	if n := len(c.Bars); n > 0 {
		slot := plotW / float64(n)
		barW := slot * 0.6
		for i, bar := range c.Bars {
			v := math.Max(bar.Value, 0)
			x := plotLeft + slot*float64(i) + (slot-barW)/2
			top := y(math.Min(v, ymax))
			fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
				x, top, barW, plotTop+plotH-top, html.EscapeString(bar.Color))
			fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle" font-size="10">%s</text>`,
				x+barW/2, y(math.Min(v+labelOffset, ymax)), html.EscapeString(bar.Text))
			fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle" font-size="12">%s</text>`,
				x+barW/2, plotTop+plotH+18, html.EscapeString(bar.Label))
		}
	}
	b.WriteString(`</svg>`)
	return b.String()
}

// ticks returns round values in [0, limit].
func ticks(limit float64) []float64 {
	step := niceStep(limit / 5)
	var out []float64
	for v := 0.0; v <= limit+1e-9; v += step {
		out = append(out, v)
	}
	return out
}

func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f <= 1:
		return mag
	case f <= 2:
		return 2 * mag
	case f <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}
