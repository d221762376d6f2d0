package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-publisher/domain/repository"
	"social-publisher/infrastructure/cache"
	"social-publisher/infrastructure/clients/platforms"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/events"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/persistence"
	"social-publisher/infrastructure/pubsub"
	"social-publisher/infrastructure/queue"
	"social-publisher/infrastructure/realtime"
	"social-publisher/infrastructure/servicebus"
	httpHandler "social-publisher/interfaces/http"
	"social-publisher/server"
	"social-publisher/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	db, vendor, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	logger.GetLogger().
		WithField("vendor", vendor).
		WithField("ping", db.Ping()).
		Info("Database connected.")

	var credentialRepository repository.ICredential
	var publishJobRepository repository.IPublishJob
	var userRepository repository.IUser
	if vendor == "mssql" {
		if err := persistence.EnsureCredentialSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
		}
		if err := persistence.EnsurePublishJobSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish job schema")
		}
		credentialRepository = persistence.NewCredentialRepositoryMSSQL(db)
		publishJobRepository = persistence.NewPublishJobRepositoryMSSQL(db)
		userRepository = persistence.NewUserRepositoryMSSQL(db)
	} else {
		if err := persistence.EnsureCredentialSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
		}
		if err := persistence.EnsurePublishJobSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring publish job schema")
		}
		credentialRepository = persistence.NewCredentialRepository(db)
		publishJobRepository = persistence.NewPublishJobRepository(db)
		userRepository = persistence.NewUserRepository(db)
	}

	mongoDb, err := persistence.NewMongoDb(
		configuration.C.Database.Mongo.Host,
		configuration.C.Database.Mongo.Port,
		configuration.C.Database.Mongo.User,
		configuration.C.Database.Mongo.Password,
		configuration.C.Database.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without the publish audit archive")
		mongoDb = nil
	} else {
		if err := mongoDb.Ping(ctx, nil); err != nil {
			logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - continuing without the publish audit archive")
			mongoDb = nil
		} else {
			logger.GetLogger().Info("MongoDB connected successfully")
		}
	}
	auditRepository := persistence.NewPublishAuditRepository(mongoDb, configuration.C.Database.Mongo.Name)

	// OAuth states live in Redis so a provider callback can land on any
	// instance; the in-memory store is the single-instance fallback.
	var authState cache.IAuthState
	redisClient, err := cache.NewRedisClient(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - using in-memory OAuth state store")
		authState = cache.NewMemoryAuthState()
	} else {
		logger.GetLogger().Info("Redis client initialized successfully.")
		authState = cache.NewRedisAuthState(redisClient)
	}

	var jobEventsPubSub pubsub.IJobEvents
	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - continuing without job event publishing")
	} else {
		jobEventsPubSub = pubsub.NewJobEvents(pubSubClient, configuration.C.Pubsub.Topic)
	}

	var jobEventsServiceBus servicebus.IJobEvents
	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without job event mirroring")
	} else {
		jobEventsServiceBus = servicebus.NewJobEvents(azServiceBusClient, configuration.C.ServiceBus.Queue)
	}

	registry := platforms.NewRegistry(&configuration.C.OAuth)
	tokenUsecase := usecase.NewTokenUsecase(credentialRepository, authState, registry)
	publishUsecase := usecase.NewPublishUsecase(publishJobRepository, credentialRepository, tokenUsecase, registry)
	userUsecase := usecase.NewUserUsecase(userRepository, app.SecretKey)

	hub := realtime.NewPublishHub()
	notifier := events.NewNotifier(hub, jobEventsPubSub, jobEventsServiceBus)

	dispatcher := queue.NewDispatcher(
		publishJobRepository,
		auditRepository,
		publishUsecase,
		notifier,
		time.Duration(configuration.C.Publish.PollIntervalSec)*time.Second,
		configuration.C.Publish.BatchSize,
	)
	// Claiming due jobs is atomic, so extra dispatchers per platform only add
	// throughput.
	for i := 0; i < configuration.C.Publish.WorkersPerPlatform; i++ {
		g.Go(func() error { return dispatcher.Run(ctx) })
	}

	userHandler := httpHandler.NewUserHandler(userUsecase)
	healthHandler := httpHandler.NewHealthHandler()
	authHandler := httpHandler.NewAuthHandler(tokenUsecase)
	publishHandler := httpHandler.NewPublishHandler(publishUsecase)

	router := server.InitiateRouter(userHandler, healthHandler, authHandler, publishHandler, userRepository, hub)

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase opens the primary store: Azure SQL in production (or when
// DB_VENDOR=mssql), PostgreSQL otherwise.
func InitiateDatabase() (*sql.DB, string, error) {
	env := os.Getenv("ENV")
	if v := os.Getenv("DB_VENDOR"); v == "mssql" || env == "production" || env == "prod" {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, "", err
		}
		return db, "mssql", nil
	}

	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		return nil, "", err
	}
	return db, "postgres", nil
}
