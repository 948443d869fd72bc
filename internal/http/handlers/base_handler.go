// README: Base handler utilities (JSON helpers, error mapping, input parsing).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taxieta/internal/maps"
	"taxieta/internal/modules/duration"
	"taxieta/internal/modules/features"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/predictor"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// predictionStatus maps pipeline errors to an HTTP status and a message safe to show users.
func predictionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, features.ErrInvalidInput),
		errors.Is(err, prediction.ErrBadRequest),
		errors.Is(err, maps.ErrBadAddress),
		errors.Is(err, maps.ErrBadCoordinate),
		errors.Is(err, maps.ErrNoRoute):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, prediction.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, predictor.ErrPredictorUnavailable):
		return http.StatusServiceUnavailable, "prediction model is temporarily unavailable"
	case errors.Is(err, predictor.ErrPredictionFailed),
		errors.Is(err, predictor.ErrVectorShape),
		errors.Is(err, duration.ErrNonFinite),
		errors.Is(err, duration.ErrOutOfRange),
		errors.Is(err, errDistanceLookup):
		return http.StatusBadGateway, "prediction failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writePredictionError(c *gin.Context, err error) {
	status, msg := predictionStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	writeError(c, status, msg)
}

var errDistanceLookup = errors.New("distance lookup failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", features.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func parseDistance(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, invalid("distance_km %q is not a number", s)
	}
	return v, nil
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, invalid("%s %q is not an integer", name, s)
	}
	return v, nil
}

func parseWeekday(s string) (features.Weekday, error) {
	d, ok := features.ParseWeekday(s)
	if !ok {
		return 0, invalid("pickup_weekday %q is not a weekday", s)
	}
	return d, nil
}

// parseFlag treats an empty flag as "N".
func parseFlag(s string) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return false, nil
	}
	v, ok := features.ParseFlag(s)
	if !ok {
		return false, invalid("store_and_fwd_flag must be Y or N, got %q", s)
	}
	return v, nil
}
