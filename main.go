package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatsync/internal/config"
	"chatsync/internal/database"
	"chatsync/internal/handlers"
	"chatsync/internal/realtime"
	"chatsync/internal/routes"
	"chatsync/internal/store"
	"chatsync/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	st := store.New(pool)
	tokens := utils.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// Change feed: row triggers -> LISTEN -> hub -> WebSocket subscribers
	hub := realtime.NewHub(st)
	go hub.Run(ctx)
	go realtime.NewListener(pool, hub, database.ChangesChannel).Run(ctx)

	app := fiber.New(fiber.Config{
		AppName: "chatsync API v1.0",
	})

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	routes.SetupRoutes(app, handlers.New(st, tokens, hub), tokens)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
