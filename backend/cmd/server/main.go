package main

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/robfig/cron/v3"

	"github.com/user/carteira/backend/internal/auth"
	"github.com/user/carteira/backend/internal/config"
	"github.com/user/carteira/backend/internal/database"
	"github.com/user/carteira/backend/internal/handlers"
	"github.com/user/carteira/backend/internal/market"
	"github.com/user/carteira/backend/internal/middleware"
	internalws "github.com/user/carteira/backend/internal/websocket"
	"github.com/user/carteira/backend/pkg/logger"
)

func main() {
	// Configuration is loaded once; everything downstream receives it
	// explicitly. Load fails when JWT_SECRET is absent.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Pretty: cfg.LogFile == "",
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting carteira API")

	auth.Init(cfg.JWTSecret)

	if err := database.InitDB(context.Background(), cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.CloseDB()
	log.Info().Msg("database connected")

	// Market feed: eager refresh at startup, then on the cron schedule.
	market.Init(cfg.MarketFeedURL, cfg.MarketFeedToken, cfg.MarketFeedCSVURL, log)
	if err := market.Refresh(context.Background()); err != nil {
		// The dashboard degrades to an empty list until the next tick.
		log.Warn().Err(err).Msg("initial market feed refresh failed")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.MarketRefresh, func() {
		if err := market.Refresh(context.Background()); err != nil {
			log.Warn().Err(err).Msg("scheduled market feed refresh failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.MarketRefresh).Msg("invalid market refresh schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	internalws.InitializeGlobalHub(log)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendOrigin,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// --- WebSocket Routes ---
	// Defined before the /api group so they skip the auth middleware.
	wsGroup := app.Group("/ws")
	wsGroup.Use("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	wsGroup.Get("/market", websocket.New(handlers.MarketWSEndpoint))

	// --- API Routes ---
	api := app.Group("/api")

	// Health check (Public)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("Carteira API is healthy!")
	})

	// Auth routes (Public)
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", handlers.Signup)
	authGroup.Post("/login", handlers.Login)

	// --- Protected Routes ---
	api.Use(middleware.Protected())

	usersGroup := api.Group("/users")
	usersGroup.Get("/me", handlers.Me)
	usersGroup.Get("/role", handlers.Role)
	usersGroup.Get("/list", middleware.AdminOnly(), handlers.ListUsers)
	usersGroup.Put("/update-role", middleware.AdminOnly(), handlers.UpdateRole)

	api.Get("/market/assets", handlers.GetMarketAssets)

	portfolioGroup := api.Group("/portfolio")
	portfolioGroup.Get("/assets", handlers.ListAssets)
	portfolioGroup.Post("/assets", handlers.CreateAsset)
	portfolioGroup.Put("/assets/:code", handlers.UpdateAsset)
	portfolioGroup.Delete("/assets/:code", handlers.DeleteAsset)
	portfolioGroup.Get("/operations", handlers.ListOperations)
	portfolioGroup.Post("/operations", handlers.CreateOperation)
	portfolioGroup.Delete("/operations/:id", handlers.DeleteOperation)

	levelsGroup := api.Group("/support-resistance")
	levelsGroup.Get("/list", handlers.ListLevels)
	levelsGroup.Post("/list", middleware.AdminOnly(), handlers.CreateLevel)
	levelsGroup.Put("/list/:id", middleware.AdminOnly(), handlers.UpdateLevel)
	levelsGroup.Delete("/list/:id", middleware.AdminOnly(), handlers.DeleteLevel)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("addr", addr).Msg("server listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
