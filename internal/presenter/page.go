package presenter

import (
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"taxieta/internal/modules/features"
	"taxieta/internal/modules/prediction"
)

//go:embed templates/*.html
var templateFS embed.FS

const PageTemplate = "index.html"

const (
	MinDistanceKm  = 0.1
	MaxDistanceKm  = 50.0
	DistanceStepKm = 0.1
)

// Form holds the submitted values as strings so a rejected submission is redisplayed verbatim.
type Form struct {
	DistanceKm string
	PickupHour string
	Weekday    string
	Month      string
	Flag       string
}

// DefaultForm is the initial state of the input form.
func DefaultForm() Form {
	return Form{
		DistanceKm: "3.5",
		PickupHour: "14",
		Weekday:    features.Monday.String(),
		Month:      "6",
		Flag:       "N",
	}
}

// FormFrom echoes accepted inputs back into the form.
func FormFrom(in features.RawInputs) Form {
	return Form{
		DistanceKm: strconv.FormatFloat(in.DistanceKm, 'f', -1, 64),
		PickupHour: strconv.Itoa(in.PickupHour),
		Weekday:    in.PickupWeekday.String(),
		Month:      strconv.Itoa(in.PickupMonth),
		Flag:       in.Flag(),
	}
}

type ResultView struct {
	ID         string
	Summary    string
	Caption    string
	Degenerate bool
	Chart      template.HTML
	Features   []features.Feature
}

type PageData struct {
	Form     Form
	Error    string
	Result   *ResultView
	Weekdays []string
	Months   []int
	Hours    []int
	MinKm    float64
	MaxKm    float64
	StepKm   float64
}

// NewPageData fills the option lists around form.
func NewPageData(form Form) PageData {
	d := PageData{
		Form:     form,
		Weekdays: features.WeekdayNames(),
		MinKm:    MinDistanceKm,
		MaxKm:    MaxDistanceKm,
		StepKm:   DistanceStepKm,
	}
	for m := 1; m <= 12; m++ {
		d.Months = append(d.Months, m)
	}
	for h := 0; h <= 23; h++ {
		d.Hours = append(d.Hours, h)
	}
	return d
}

// View builds the result block for p. The chart is generated here, never taken from input.
func View(p *prediction.Prediction) *ResultView {
	return &ResultView{
		ID:         p.ID.String(),
		Summary:    Summary(p.Result),
		Caption:    Caption(p.Result),
		Degenerate: p.Result.Degenerate,
		Chart:      template.HTML(RenderSVG(Comparison(p.Result.DurationSeconds, p.Average))),
		Features:   p.Features.Ordered(),
	}
}

// Templates parses the embedded page templates for gin's HTML renderer.
func Templates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"same": func(a, b any) bool { return fmt.Sprint(a) == fmt.Sprint(b) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("presenter: parse templates: %w", err)
	}
	return tmpl, nil
}
