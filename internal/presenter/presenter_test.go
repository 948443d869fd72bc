package presenter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/types"
)

func mustDecode(t *testing.T, seconds float64) duration.Result {
	t.Helper()
	r, err := duration.Decode(duration.Encode(seconds))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestSummaryAndCaption(t *testing.T) {
	cases := []struct {
		seconds     float64
		wantSummary string
		wantCaption string
	}{
		{60, "1 minutes, 0 seconds", "(= 60 seconds)"},
		{754.6, "12 minutes, 34 seconds", "(= 755 seconds)"},
		{59.4, "0 minutes, 59 seconds", "(= 59 seconds)"},
		{0, "0 minutes, 0 seconds", "(= 0 seconds)"},
	}
	for _, tc := range cases {
		r := mustDecode(t, tc.seconds)
		if got := Summary(r); got != tc.wantSummary {
			t.Errorf("Summary(%v) = %q, want %q", tc.seconds, got, tc.wantSummary)
		}
		if got := Caption(r); got != tc.wantCaption {
			t.Errorf("Caption(%v) = %q, want %q", tc.seconds, got, tc.wantCaption)
		}
	}
}

func TestComparison(t *testing.T) {
	c := Comparison(754.6, 959.2)
	if c.YMax != 959.2+300 {
		t.Fatalf("YMax = %v, want %v", c.YMax, 959.2+300)
	}
	if len(c.Bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(c.Bars))
	}
	if c.Bars[0].Label != LabelPredicted || c.Bars[0].Text != "754s" {
		t.Errorf("predicted bar = %+v", c.Bars[0])
	}
	if c.Bars[1].Label != LabelAverage || c.Bars[1].Text != "959s" {
		t.Errorf("average bar = %+v", c.Bars[1])
	}

	c = Comparison(2000, 900)
	if c.YMax != 2300 {
		t.Errorf("YMax = %v, want 2300", c.YMax)
	}

	c = Comparison(1e19, 900)
	if c.Bars[0].Text != "10000000000000000000s" {
		t.Errorf("large bar text = %q", c.Bars[0].Text)
	}
}

func TestRenderSVG(t *testing.T) {
	svg := RenderSVG(Comparison(600, 900))
	for _, want := range []string{"<svg", "</svg>", "Trip Duration Comparison", "Predicted", "NYC Average", "600s", "900s", `fill="teal"`, `fill="gray"`} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}

	c := Comparison(1, 1)
	c.Bars[0].Label = `<script>alert(1)</script>`
	if strings.Contains(RenderSVG(c), "<script>") {
		t.Error("bar label was not escaped")
	}
}

func TestTicksAreRound(t *testing.T) {
	got := ticks(1259.2)
	want := []float64{0, 500, 1000}
	if len(got) != len(want) {
		t.Fatalf("ticks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", got, want)
		}
	}
}

func testPrediction(t *testing.T) *prediction.Prediction {
	t.Helper()
	in := features.RawInputs{DistanceKm: 3.5, PickupHour: 14, PickupWeekday: features.Wednesday, PickupMonth: 6}
	feats, err := features.Derive(in)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	r := mustDecode(t, 754)
	return &prediction.Prediction{
		ID:          types.NewID(),
		Inputs:      in,
		Features:    feats,
		LogDuration: r.LogDuration,
		Result:      r,
		Average:     900,
		CreatedAt:   time.Date(2026, 6, 3, 14, 0, 0, 0, time.UTC),
	}
}

func TestRenderPDF(t *testing.T) {
	out, err := RenderPDF(testPrediction(t))
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 16)])
	}
	if _, err := RenderPDF(nil); err == nil {
		t.Fatal("expected error for nil prediction")
	}
}

func TestPageRendersFormAndResult(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}

	var empty bytes.Buffer
	if err := tmpl.ExecuteTemplate(&empty, PageTemplate, NewPageData(DefaultForm())); err != nil {
		t.Fatalf("render empty page: %v", err)
	}
	page := empty.String()
	for _, want := range []string{`value="3.5"`, `<option value="14" selected>`, `<option value="Monday" selected>`, `<option value="6" selected>`, `value="N" checked`} {
		if !strings.Contains(page, want) {
			t.Errorf("default page missing %q", want)
		}
	}
	if strings.Contains(page, "Prediction Result") {
		t.Error("default page must not show a result")
	}

	p := testPrediction(t)
	data := NewPageData(FormFrom(p.Inputs))
	data.Result = View(p)
	var full bytes.Buffer
	if err := tmpl.ExecuteTemplate(&full, PageTemplate, data); err != nil {
		t.Fatalf("render result page: %v", err)
	}
	page = full.String()
	for _, want := range []string{"12 minutes, 34 seconds", "(= 754 seconds)", "<svg", "time_of_day_afternoon", `<option value="Wednesday" selected>`, p.ID.String()} {
		if !strings.Contains(page, want) {
			t.Errorf("result page missing %q", want)
		}
	}
}

func TestPageEscapesError(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}
	data := NewPageData(Form{DistanceKm: `"><b>x</b>`})
	data.Error = "<b>bad</b>"
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, PageTemplate, data); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "<b>") {
		t.Error("user input rendered unescaped")
	}
}
