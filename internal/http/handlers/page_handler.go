// README: HTML form page; GET renders defaults, POST predicts and re-renders with the result or an error.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxieta/internal/modules/features"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/presenter"
)

type PageHandler struct {
	prediction *prediction.Service
}

func NewPageHandler(svc *prediction.Service) *PageHandler {
	return &PageHandler{prediction: svc}
}

func (h *PageHandler) Show(c *gin.Context) {
	c.HTML(http.StatusOK, presenter.PageTemplate, presenter.NewPageData(presenter.DefaultForm()))
}

func (h *PageHandler) Submit(c *gin.Context) {
	form := presenter.Form{
		DistanceKm: c.PostForm("distance_km"),
		PickupHour: c.PostForm("pickup_hour"),
		Weekday:    c.PostForm("pickup_weekday"),
		Month:      c.PostForm("pickup_month"),
		Flag:       c.PostForm("store_and_fwd_flag"),
	}
	data := presenter.NewPageData(form)

	in, err := formInputs(form)
	if err == nil {
		var p *prediction.Prediction
		if p, err = h.prediction.Predict(c.Request.Context(), in); err == nil {
			data.Form = presenter.FormFrom(in)
			data.Result = presenter.View(p)
			c.HTML(http.StatusOK, presenter.PageTemplate, data)
			return
		}
	}

	status, msg := predictionStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	data.Error = msg
	c.HTML(status, presenter.PageTemplate, data)
}

func formInputs(f presenter.Form) (features.RawInputs, error) {
	var (
		in  features.RawInputs
		err error
	)
	if in.DistanceKm, err = parseDistance(f.DistanceKm); err != nil {
		return in, err
	}
	if in.PickupHour, err = parseInt("pickup_hour", f.PickupHour); err != nil {
		return in, err
	}
	if in.PickupWeekday, err = parseWeekday(f.Weekday); err != nil {
		return in, err
	}
	if in.PickupMonth, err = parseInt("pickup_month", f.Month); err != nil {
		return in, err
	}
	if in.StoreAndForward, err = parseFlag(f.Flag); err != nil {
		return in, err
	}
	return in, nil
}
