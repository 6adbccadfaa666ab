package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/dhq-platform/accommodation/internal/config"
	"github.com/dhq-platform/accommodation/internal/database"
	"github.com/dhq-platform/accommodation/internal/handler"
	"github.com/dhq-platform/accommodation/internal/queue"
	"github.com/dhq-platform/accommodation/internal/repository"
	"github.com/dhq-platform/accommodation/internal/router"
	"github.com/dhq-platform/accommodation/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	queueRepo := repository.NewQueueRepo(db)
	units := repository.NewUnitRepo(db)
	requests := repository.NewAllocationRepo(db)
	archive := repository.NewPastAllocationRepo(db)
	audit := repository.NewAuditRepo(db)

	engine := service.NewAllocationService(db, queueRepo, units, requests, archive)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:         cfg,
		Redis:       rdb,
		Cache:       config.LoadCacheConfig(),
		RateLimit:   config.LoadRateLimitConfig(),
		Auth:        handler.NewAuthHandler(users, tokens, cfg),
		Queue:       handler.NewQueueHandler(queueRepo, audit),
		Units:       handler.NewUnitHandler(units, audit),
		Allocations: handler.NewAllocationHandler(engine, requests, queueRepo, audit),
		Past:        handler.NewPastAllocationHandler(archive, audit),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := queue.StartAllocationConsumer(); err != nil {
			log.Printf("allocation-consumer stopped: %v", err)
		}
	}()
	if cfg.HeartbeatSec > 0 {
		go service.StartQueueHeartbeat(ctx, queueRepo, time.Duration(cfg.HeartbeatSec)*time.Second)
	}

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
