// README: HTTP router registration.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxieta/internal/http/handlers"
	"taxieta/internal/http/middleware"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/presenter"
)

type RouterDeps struct {
	Prediction  *prediction.Service
	Distances   handlers.DistanceResolver
	Health      map[string]handlers.Pinger
	Logger      *slog.Logger
	CORSOrigins []string
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if deps.Prediction == nil {
		return nil, fmt.Errorf("router: prediction service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := presenter.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Recovery(logger),
		middleware.CORS(deps.CORSOrigins),
	)

	pageHandler := handlers.NewPageHandler(deps.Prediction)
	r.GET("/", pageHandler.Show)
	r.POST("/", pageHandler.Submit)

	api := r.Group("/api")
	predictionHandler := handlers.NewPredictionHandler(deps.Prediction, deps.Distances)
	api.POST("/predict", predictionHandler.Predict)
	api.GET("/predictions", predictionHandler.List)
	api.GET("/predictions/:id", predictionHandler.Get)
	api.GET("/predictions/:id/chart.svg", predictionHandler.Chart)
	api.GET("/predictions/:id/report.pdf", predictionHandler.Report)
	api.GET("/schema", predictionHandler.Schema)

	healthHandler := handlers.NewHealthHandler(deps.Health)
	r.GET("/health", healthHandler.Check)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r, nil
}
