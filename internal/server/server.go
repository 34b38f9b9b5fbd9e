package server

import (
	"backend-runpulse/internal/auth"
	"backend-runpulse/internal/config"
	"backend-runpulse/internal/offline"
	"backend-runpulse/internal/profile"
	"backend-runpulse/internal/run"
	"backend-runpulse/internal/sidestore"
	"backend-runpulse/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub

	Runs    *run.Manager
	Records *run.Service
	Queue   *offline.Queue
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	records := run.NewService(db)
	queue := offline.NewQueue(redisClient)
	store := sidestore.NewStore(redisClient)
	profiles := profile.NewService(db)

	runCfg := run.Config{
		Filter:             cfg.FilterConfig(),
		SegmentThresholdM:  cfg.SegmentThresholdM,
		MinSubmitDistanceM: cfg.MinSubmitDistanceM,
		PollInterval:       cfg.PollInterval(),
	}

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: hub,

		Runs:    run.NewManager(runCfg, records, queue, hub, store, profiles),
		Records: records,
		Queue:   queue,
	}

	registerRoutes(s, profiles)
	return s
}

func registerRoutes(s *Server, profiles *profile.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	run.RegisterRoutes(s.App.Group("/runs"), s.Runs, jwtMiddleware)
	profile.RegisterRoutes(s.App.Group("/profile"), profiles, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)

	s.App.Post("/offline/sweep", jwtMiddleware, func(c *fiber.Ctx) error {
		delivered, parked, err := s.Queue.Sweep(c.Context(), func(item offline.Item) error {
			return s.Records.Resubmit(c.Context(), item)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"delivered": delivered, "parked": parked})
	})

	s.App.Get("/offline/failed", jwtMiddleware, func(c *fiber.Ctx) error {
		items, err := s.Queue.Failed(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(items)
	})
}
