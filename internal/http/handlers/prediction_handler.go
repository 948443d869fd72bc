// README: Prediction JSON API: predict, history, chart, PDF report and schema.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taxieta/internal/modules/features"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/presenter"
	"taxieta/internal/types"
)

// DistanceResolver turns two addresses into a driving distance in km.
type DistanceResolver interface {
	DistanceKm(ctx context.Context, origin, destination string) (float64, error)
}

type PredictionHandler struct {
	prediction *prediction.Service
	distances  DistanceResolver
}

// NewPredictionHandler builds the handler; distances may be nil when no Maps key is configured.
func NewPredictionHandler(svc *prediction.Service, distances DistanceResolver) *PredictionHandler {
	return &PredictionHandler{prediction: svc, distances: distances}
}

type predictReq struct {
	DistanceKm    *float64 `json:"distance_km"`
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	PickupHour    *int     `json:"pickup_hour" binding:"required"`
	PickupWeekday string   `json:"pickup_weekday" binding:"required"`
	PickupMonth   *int     `json:"pickup_month" binding:"required"`
	Flag          string   `json:"store_and_fwd_flag"`
}

type predictResp struct {
	*prediction.Prediction
	Summary string          `json:"summary"`
	Caption string          `json:"caption"`
	Chart   presenter.Chart `json:"chart"`
}

func newPredictResp(p *prediction.Prediction) predictResp {
	return predictResp{
		Prediction: p,
		Summary:    presenter.Summary(p.Result),
		Caption:    presenter.Caption(p.Result),
		Chart:      presenter.Comparison(p.Result.DurationSeconds, p.Average),
	}
}

func (h *PredictionHandler) Predict(c *gin.Context) {
	var req predictReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	in, err := h.rawInputs(c.Request.Context(), req)
	if err != nil {
		writePredictionError(c, err)
		return
	}
	p, err := h.prediction.Predict(c.Request.Context(), in)
	if err != nil {
		writePredictionError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newPredictResp(p))
}

func (h *PredictionHandler) rawInputs(ctx context.Context, req predictReq) (features.RawInputs, error) {
	var in features.RawInputs
	switch {
	case req.DistanceKm != nil:
		in.DistanceKm = *req.DistanceKm
	case req.Origin != "" || req.Destination != "":
		if h.distances == nil {
			return in, invalid("origin/destination lookup is not configured; send distance_km")
		}
		km, err := h.distances.DistanceKm(ctx, req.Origin, req.Destination)
		if err != nil {
			if status, _ := predictionStatus(err); status == http.StatusBadRequest {
				return in, err
			}
			return in, fmt.Errorf("%w: %v", errDistanceLookup, err)
		}
		in.DistanceKm = km
	default:
		return in, invalid("distance_km or origin and destination are required")
	}

	var err error
	in.PickupHour = *req.PickupHour
	in.PickupMonth = *req.PickupMonth
	if in.PickupWeekday, err = parseWeekday(req.PickupWeekday); err != nil {
		return in, err
	}
	if in.StoreAndForward, err = parseFlag(req.Flag); err != nil {
		return in, err
	}
	return in, nil
}

func (h *PredictionHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	items, err := h.prediction.Recent(c.Request.Context(), limit)
	if err != nil {
		writePredictionError(c, err)
		return
	}
	out := make([]predictResp, 0, len(items))
	for _, p := range items {
		out = append(out, newPredictResp(p))
	}
	writeJSON(c, http.StatusOK, gin.H{"predictions": out})
}

func (h *PredictionHandler) lookup(c *gin.Context) (*prediction.Prediction, bool) {
	id, ok := types.ParseID(c.Param("id"))
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid prediction id")
		return nil, false
	}
	p, err := h.prediction.Get(c.Request.Context(), id)
	if err != nil {
		writePredictionError(c, err)
		return nil, false
	}
	return p, true
}

func (h *PredictionHandler) Get(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, newPredictResp(p))
}

func (h *PredictionHandler) Chart(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	svg := presenter.RenderSVG(presenter.Comparison(p.Result.DurationSeconds, p.Average))
	c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", []byte(svg))
}

func (h *PredictionHandler) Report(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	pdf, err := presenter.RenderPDF(p)
	if err != nil {
		writePredictionError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="trip-duration-%s.pdf"`, p.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *PredictionHandler) Schema(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.prediction.Schema())
}
