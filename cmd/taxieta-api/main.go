// README: Entry point; loads config and artifacts, wires services, starts the HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"taxieta/internal/config"
	httptransport "taxieta/internal/http"
	"taxieta/internal/http/handlers"
	"taxieta/internal/infra"
	"taxieta/internal/maps"
	"taxieta/internal/modules/prediction"
	"taxieta/internal/predictor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		infra.NewLogger("error", "text").Error("load config", "err", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fatal := func(msg string, err error) {
		logger.Error(msg, "err", err)
		os.Exit(1)
	}

	artifacts, err := loadArtifacts(ctx, cfg)
	if err != nil {
		fatal("load artifacts", err)
	}
	rt, err := prediction.NewRuntime(artifacts, cfg.Schema.Strict)
	if err != nil {
		fatal("check feature schema", err)
	}
	if !rt.Coverage.Complete() {
		logger.Warn("feature schema coverage incomplete",
			"dropped", rt.Coverage.Dropped,
			"zero_filled", rt.Coverage.ZeroFilled,
		)
	}
	logger.Info("artifacts loaded",
		"columns", len(rt.Schema),
		"average_seconds", rt.Average,
		"backend", cfg.Model.Backend,
	)

	health := map[string]handlers.Pinger{}

	var store prediction.Store
	if cfg.DB.DSN != "" {
		var dbPool *pgxpool.Pool
		dbPool, err = infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			fatal("connect db", err)
		}
		defer dbPool.Close()
		store = prediction.NewPGStore(dbPool)
		health["postgres"] = dbPool
	} else {
		store = prediction.NewMemoryStore(cfg.History.Capacity)
		logger.Info("prediction history kept in memory", "capacity", cfg.History.Capacity)
	}

	var cache prediction.Cache
	if cfg.Redis.Addr != "" {
		var redisClient *redis.Client
		redisClient, err = infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			fatal("connect redis", err)
		}
		defer redisClient.Close()
		cache = prediction.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
		health["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	var distances handlers.DistanceResolver = maps.StraightLine{}
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			fatal("maps client", err)
		}
		distances = routeSvc
	} else {
		logger.Info("no maps api key, origin/destination must be lat,lng coordinates")
	}

	predictionSvc := prediction.NewService(rt, store, cache, logger)

	gin.SetMode(cfg.HTTP.GinMode)
	router, err := httptransport.NewRouter(httptransport.RouterDeps{
		Prediction:  predictionSvc,
		Distances:   distances,
		Health:      health,
		Logger:      logger,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	if err != nil {
		fatal("build router", err)
	}

	server := httptransport.NewServer(httptransport.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router, logger)
	if err := server.Run(ctx); err != nil {
		fatal("http server", err)
	}
	logger.Info("shutdown complete")
}

// loadArtifacts reads the columns and average files, and the model file unless a remote backend serves predictions.
func loadArtifacts(ctx context.Context, cfg config.Config) (*predictor.Artifacts, error) {
	paths := predictor.Paths{
		Model:   cfg.Artifacts.Model,
		Columns: cfg.Artifacts.Columns,
		Average: cfg.Artifacts.Average,
	}
	if cfg.Model.Backend != config.BackendRemote {
		return predictor.LoadArtifacts(ctx, paths)
	}
	schema, err := predictor.LoadColumns(paths.Columns)
	if err != nil {
		return nil, err
	}
	remote := predictor.NewRemote(cfg.Model.URL, cfg.Model.Timeout, predictor.WithSchema(schema))
	return predictor.LoadArtifacts(ctx, paths, predictor.WithPredictor(remote))
}
