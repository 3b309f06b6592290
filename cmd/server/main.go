package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/api/handlers"
	"github.com/maheshrc27/postpilot/internal/api/middleware"
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/publisher"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/scheduler"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/robfig/cron"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := repository.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	clock := clockwork.NewRealClock()

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)

	credentialService := service.NewCredentialService(socialAccountRepo, cfg.SecretKey)
	linkedinService := service.NewLinkedinService(cfg.Linkedin.APIURL, &http.Client{Timeout: cfg.Publish.Timeout})

	pub := publisher.New(postRepo, credentialService, linkedinService, publisher.Options{
		Timeout: cfg.Publish.Timeout,
		Retry: publisher.NewRetryPolicy(publisher.RetryConfig{
			MaxRetries: cfg.Publish.MaxRetries,
			BaseDelay:  cfg.Publish.RetryBaseDelay,
			MaxDelay:   cfg.Publish.RetryMaxDelay,
		}),
		History: postingHistoryRepo,
		Clock:   clock,
		Logger:  slog.Default().With(slog.String("component", "publisher")),
	})

	sched := scheduler.New(clock, pub, postRepo, slog.Default().With(slog.String("component", "scheduler")))

	postService := service.NewPostService(postRepo, postingHistoryRepo, sched, clock)
	platformService := service.NewPlatformService(*cfg, service.NewLinkedinOAuthConfig(*cfg), socialAccountRepo)

	// every persisted schedule is armed before the first request is served
	sched.Recover(context.Background())

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	health := handlers.NewHealthHandler(sched)
	app.Get("/api/health", health.Health)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/linkedin", authMiddleware.AuthMiddleware(), platform.AuthURL)
	app.Get("/auth/linkedin/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Get("/posts/:id/history", post.PostHistory)

	scheduling := handlers.NewSchedulerHandler(postService)
	api.Post("/scheduler/schedule", scheduling.Schedule)
	api.Post("/scheduler/cancel", scheduling.Cancel)
	api.Get("/scheduler/upcoming", scheduling.Upcoming)

	api.Get("/linkedin/status", platform.Status)
	api.Post("/linkedin/disconnect", platform.Disconnect)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, platformService)

	c := cron.New()
	if err := c.AddFunc(cfg.TokenRefreshSchedule, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Invalid token refresh schedule %q: %v", cfg.TokenRefreshSchedule, err)
	}
	c.Start()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, c, sched, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, sched *scheduler.Scheduler, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}

	c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Shutdown(ctx); err != nil {
		log.Printf("Scheduler did not drain in time: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
