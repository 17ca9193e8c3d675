package main

import (
	"context"
	"log"
	stdhttp "net/http"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/http"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/safety"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	linkStorage := storage.NewPostgresLinkStorage(pool)
	if err := linkStorage.EnsureSchema(context.Background()); err != nil {
		log.Fatal(err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	linkCache := cache.NewLinkCache(redisClient)

	checker := safety.Compose(
		safety.PolicyChecker{},
		safety.NewReachabilityChecker(logger),
	)

	linkService := service.NewLinkService(linkStorage, linkCache, checker, logger)
	defer linkService.Flush()

	auth := middleware.NewAuth(cfg.JWTSecret, logger)
	handler := http.NewHandler(linkService, checker, cfg.BaseURL)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	http.SetupRoutes(r, handler, auth.Authenticate)

	log.Println("Starting API server on :" + cfg.Port)
	log.Fatal(stdhttp.ListenAndServe(":"+cfg.Port, r))
}
