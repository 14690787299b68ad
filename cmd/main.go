package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/config"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/daily"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/database/mongo"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/database/redis"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/event"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/handlers"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/identity"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/quizbank"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/repository"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"
	"github.com/StefanRadev91/TSPlaywrightSite/pkg/discovery"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/hashicorp/go-multierror"
)

// setupLogging sends the standard logger to a daily file under dir. An empty
// dir keeps stdout.
func setupLogging(dir string) (*os.File, error) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if dir == "" {
		return nil, nil
	}

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(dir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	return file, nil
}

func main() {
	cfg := config.Load()

	logFile, err := setupLogging(cfg.Log.Dir)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Storage
	mongoClient, err := mongo.Connect(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	redisClient := redis.NewClient(cfg.Redis)

	userRepo := repository.NewUserRepository(mongoClient.Database)
	credentialRepo := repository.NewCredentialRepository(mongoClient.Database)
	statsRepo := repository.NewStatsRepository(mongoClient.Database)
	redisRepo := repository.NewRedisRepo(redisClient, cfg.Session.LocalAnswerTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := userRepo.CreateIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create user indexes: %v", err)
	}
	if err := credentialRepo.CreateIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create credential indexes: %v", err)
	} else {
		log.Println("Database indexes created successfully")
	}
	cancel()

	eventPublisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
		eventPublisher, _ = event.NewEventPublisher("", cfg.RabbitMQ.Exchange)
	}

	// Identity provider
	google := identity.NewGoogleOAuth(cfg.Google)
	var external identity.ExternalAuthenticator
	if google.Enabled() {
		external = google
	} else {
		log.Println("Warning: Google client credentials are not set, Google sign-in is disabled")
	}
	tokens := identity.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	identityService := identity.NewService(credentialRepo, redisRepo, tokens, external, identity.Options{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockoutWindow:     cfg.Auth.LockoutWindow,
	})

	// Sessions
	registry := session.NewRegistry(
		func(restoreToken string) session.IdentityProvider {
			return identityService.NewClient(restoreToken)
		},
		userRepo,
		session.Options{
			Location:     cfg.Quiz.Location,
			LoadTimeout:  cfg.Session.LoadTimeout,
			WriteTimeout: cfg.Session.WriteTimeout,
		},
		cfg.Session.IdleTTL,
	)
	registry.Start(cfg.Session.JanitorEvery)
	handlers.RegisterSessionGauge(registry)

	selector := daily.NewSelector(quizbank.MustLoad(), redisRepo, cfg.Quiz.Location, nil)

	// HTTP API
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: !slices.Contains(cfg.Server.AllowOrigins, "*"),
	}))
	app.Use(func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Printf("%s %s %d %s", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
		return err
	})

	publicHandler := handlers.NewPublicHandler(statsRepo, mongoClient.IsConnected)
	publicHandler.RegisterSystemRoutes(app)

	sessionMiddleware := middleware.NewSessionMiddleware(registry, redisRepo, statsRepo, cfg)
	app.Use(sessionMiddleware.Handler())

	publicHandler.RegisterRoutes(app)
	handlers.NewAuthHandler(google, redisRepo, eventPublisher, cfg.Auth.MinPasswordLength, cfg.Google.StateTTL, cfg.Server.FEAddress).RegisterRoutes(app)
	handlers.NewProgressHandler(eventPublisher).RegisterRoutes(app)
	handlers.NewQuizHandler(selector, eventPublisher).RegisterRoutes(app)
	handlers.NewProfileHandler(cfg.Quiz.Location, nil).RegisterRoutes(app)

	// Session stream
	streamServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.StreamPort),
		Handler:           handlers.NewStreamServer(registry, cfg.Server.AllowOrigins).Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	// Service discovery
	var serviceRegistry *discovery.ServiceRegistry
	if cfg.Consul.Enabled {
		serviceRegistry, err = discovery.NewServiceRegistry(cfg)
		if err != nil {
			log.Printf("Warning: Service discovery init failed: %v", err)
		} else if err := serviceRegistry.Register(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)
	streamDoneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	go func() {
		log.Printf("Starting session stream on port %s", cfg.Server.StreamPort)
		if err := streamServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting session stream: %v", err)
		}
		streamDoneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var result *multierror.Error
	if serviceRegistry != nil {
		result = multierror.Append(result, serviceRegistry.Deregister())
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if err := streamServer.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("error shutting down session stream: %w", err))
	}
	registry.Close()
	if err := eventPublisher.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("error closing event publisher: %w", err))
	}
	if err := redisClient.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("error closing Redis: %w", err))
	}
	if err := mongoClient.Disconnect(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		log.Printf("Shutdown finished with errors: %v", err)
	}

	<-doneChan
	<-streamDoneChan
	log.Println("Server shutdown complete")
}
