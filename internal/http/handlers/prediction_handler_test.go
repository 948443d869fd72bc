// README: Handler tests for the prediction API and the HTML form.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxieta/internal/http/handlers"
	"taxieta/internal/maps"
	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/predictor"
	"taxieta/internal/presenter"
)

// stubPredictor answers every vector with a fixed log duration or error.
type stubPredictor struct {
	out float64
	err error
}

func (p stubPredictor) Predict(context.Context, features.Vector) (float64, error) { return p.out, p.err }
func (p stubPredictor) Columns() features.Schema                                  { return nil }

type stubDistances struct {
	km  float64
	err error
}

func (s stubDistances) DistanceKm(context.Context, string, string) (float64, error) { return s.km, s.err }

func newService(t *testing.T, p predictor.Predictor) *prediction.Service {
	t.Helper()
	schema, err := features.NewSchema(features.Names())
	require.NoError(t, err)
	rt, err := prediction.NewRuntime(&predictor.Artifacts{Schema: schema, Predictor: p, Average: 900}, true)
	require.NoError(t, err)
	return prediction.NewService(rt, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func buildTestRouter(t *testing.T, p predictor.Predictor, distances handlers.DistanceResolver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newService(t, p)
	tmpl, err := presenter.Templates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	page := handlers.NewPageHandler(svc)
	r.GET("/", page.Show)
	r.POST("/", page.Submit)
	h := handlers.NewPredictionHandler(svc, distances)
	r.POST("/api/predict", h.Predict)
	r.GET("/api/predictions", h.List)
	r.GET("/api/predictions/:id", h.Get)
	r.GET("/api/predictions/:id/chart.svg", h.Chart)
	r.GET("/api/predictions/:id/report.pdf", h.Report)
	r.GET("/api/schema", h.Schema)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func wednesday() map[string]any {
	return map[string]any{
		"distance_km":        3.5,
		"pickup_hour":        14,
		"pickup_weekday":     "Wednesday",
		"pickup_month":       6,
		"store_and_fwd_flag": "N",
	}
}

type predictBody struct {
	ID       string             `json:"id"`
	Features map[string]float64 `json:"features"`
	Result   duration.Result    `json:"result"`
	Summary  string             `json:"summary"`
	Caption  string             `json:"caption"`
	Chart    presenter.Chart    `json:"chart"`
}

func TestPredictJSON(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: duration.Encode(754)}, nil)

	w := doJSON(r, http.MethodPost, "/api/predict", wednesday())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got predictBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "12 minutes, 34 seconds", got.Summary)
	assert.Equal(t, "(= 754 seconds)", got.Caption)
	assert.Equal(t, 2.0, got.Features["pickup_weekday"])
	assert.Equal(t, 1.0, got.Features["time_of_day_afternoon"])
	assert.Equal(t, 1.0, got.Features["distance_bin_medium"])
	require.Len(t, got.Chart.Bars, 2)
	assert.Equal(t, "NYC Average", got.Chart.Bars[1].Label)
	assert.InDelta(t, 1200.0, got.Chart.YMax, 1e-9)

	w = doJSON(r, http.MethodGet, "/api/predictions/"+got.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/predictions/"+got.ID+"/chart.svg", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "image/svg+xml")
	assert.Contains(t, w.Body.String(), "754s")

	w = doJSON(r, http.MethodGet, "/api/predictions/"+got.ID+"/report.pdf", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = doJSON(r, http.MethodGet, "/api/predictions?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Predictions []predictBody `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Predictions, 1)
	assert.Equal(t, got.ID, list.Predictions[0].ID)
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: 6}, nil)

	cases := map[string]func(map[string]any){
		"zero distance":   func(b map[string]any) { b["distance_km"] = 0 },
		"hour 24":         func(b map[string]any) { b["pickup_hour"] = 24 },
		"month 0":         func(b map[string]any) { b["pickup_month"] = 0 },
		"bad weekday":     func(b map[string]any) { b["pickup_weekday"] = "Someday" },
		"bad flag":        func(b map[string]any) { b["store_and_fwd_flag"] = "X" },
		"missing hour":    func(b map[string]any) { delete(b, "pickup_hour") },
		"missing weekday": func(b map[string]any) { delete(b, "pickup_weekday") },
		"no distance":     func(b map[string]any) { delete(b, "distance_km") },
		"maps disabled":   func(b map[string]any) { delete(b, "distance_km"); b["origin"] = "a"; b["destination"] = "b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := wednesday()
			mutate(body)
			w := doJSON(r, http.MethodPost, "/api/predict", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPredictResolvesDistance(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: duration.Encode(600)}, stubDistances{km: 12.3})
	body := wednesday()
	delete(body, "distance_km")
	body["origin"] = "JFK Airport"
	body["destination"] = "Times Square"

	w := doJSON(r, http.MethodPost, "/api/predict", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got predictBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 12.3, got.Features["distance_km"])
	assert.Equal(t, 1.0, got.Features["distance_bin_very_long"])
}

func TestPredictStraightLineDistance(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: duration.Encode(600)}, maps.StraightLine{})
	body := wednesday()
	delete(body, "distance_km")
	body["origin"] = "40.7580,-73.9855"
	body["destination"] = "40.7484,-73.9857"

	w := doJSON(r, http.MethodPost, "/api/predict", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got predictBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.InDelta(t, 1.07, got.Features["distance_km"], 0.05)
	assert.Equal(t, 1.0, got.Features["distance_bin_short"])
}

func TestPredictDistanceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no route", maps.ErrNoRoute, http.StatusBadRequest},
		{"bad coordinate", maps.ErrBadCoordinate, http.StatusBadRequest},
		{"api down", errors.New("maps api error: 500"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildTestRouter(t, stubPredictor{out: 6}, stubDistances{err: tc.err})
			body := wednesday()
			delete(body, "distance_km")
			body["origin"] = "a"
			body["destination"] = "b"
			w := doJSON(r, http.MethodPost, "/api/predict", body)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestPredictPredictorErrors(t *testing.T) {
	cases := []struct {
		name string
		p    stubPredictor
		want int
	}{
		{"unavailable", stubPredictor{err: predictor.ErrPredictorUnavailable}, http.StatusServiceUnavailable},
		{"failed", stubPredictor{err: predictor.ErrPredictionFailed}, http.StatusBadGateway},
		{"non finite", stubPredictor{out: 1e6}, http.StatusBadGateway},
		{"runaway duration", stubPredictor{out: 47.96}, http.StatusBadGateway},
		{"unexpected", stubPredictor{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildTestRouter(t, tc.p, nil)
			w := doJSON(r, http.MethodPost, "/api/predict", wednesday())
			assert.Equal(t, tc.want, w.Code)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestGetPredictionErrors(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: 6}, nil)

	w := doJSON(r, http.MethodGet, "/api/predictions/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/predictions/6f1c1f0e-6f9e-4a52-9a0e-7b6f2b1f3c11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/predictions?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaEndpoint(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: 6}, nil)
	w := doJSON(r, http.MethodGet, "/api/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got prediction.SchemaReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, features.Names(), got.Columns)
	assert.True(t, got.Coverage.Complete())
}

func postForm(r *gin.Engine, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPageShowAndSubmit(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: duration.Encode(754)}, nil)

	w := doJSON(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="3.5"`)

	w = postForm(r, url.Values{
		"distance_km":        {"3.5"},
		"pickup_hour":        {"14"},
		"pickup_weekday":     {"Wednesday"},
		"pickup_month":       {"6"},
		"store_and_fwd_flag": {"N"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "12 minutes, 34 seconds")
	assert.Contains(t, body, "(= 754 seconds)")
	assert.Contains(t, body, "<svg")
}

func TestPageSubmitInvalidRedisplaysForm(t *testing.T) {
	r := buildTestRouter(t, stubPredictor{out: 6}, nil)

	w := postForm(r, url.Values{
		"distance_km":    {"-2"},
		"pickup_hour":    {"9"},
		"pickup_weekday": {"Friday"},
		"pickup_month":   {"3"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `class="error"`)
	assert.Contains(t, body, `value="-2"`)
	assert.Contains(t, body, `<option value="Friday" selected>`)
	assert.NotContains(t, body, "Prediction Result")
}
