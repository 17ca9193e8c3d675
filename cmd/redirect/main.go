package main

import (
	"context"
	"log"
	stdhttp "net/http"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	httphandler "shortlink/pkg/http"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/safety"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Redirect-only server: serves the hot path without the lifecycle API, so
// it can be scaled independently.
func main() {
	cfg := config.Load()
	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	linkStorage := storage.NewPostgresLinkStorage(pool)

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	linkCache := cache.NewLinkCache(redisClient)

	// No create/update path here, so the pure policy checker suffices.
	linkService := service.NewLinkService(linkStorage, linkCache, safety.PolicyChecker{}, logger)
	defer linkService.Flush()

	handler := httphandler.NewHandler(linkService, safety.PolicyChecker{}, cfg.BaseURL)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Get("/health", handler.HealthCheck)
	r.Get("/{code}", handler.Redirect)

	log.Println("Starting redirect server on :" + cfg.RedirectPort)
	log.Fatal(stdhttp.ListenAndServe(":"+cfg.RedirectPort, r))
}
