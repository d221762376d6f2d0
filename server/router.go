package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"social-publisher/domain/repository"
	"social-publisher/infrastructure/realtime"
	httpHandler "social-publisher/interfaces/http"
	"social-publisher/interfaces/middleware"
)

func InitiateRouter(
	userHandler httpHandler.IUserHandler,
	healthHandler httpHandler.IHealthHandler,
	authHandler httpHandler.IAuthHandler,
	publishHandler httpHandler.IPublishHandler,
	userRepository repository.IUser,
	hub *realtime.Hub,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/login", userHandler.Login)
	router.GET("/healthz", healthHandler.Healthz)

	// Provider redirects land here without our bearer token; the state token
	// is what ties the callback back to the initiating user.
	router.GET("/auth/:platform/callback", authHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth(userRepository))

	auth := api.Group("/auth")
	{
		auth.GET("/connections", authHandler.Connections)
		auth.GET("/:platform/initiate", authHandler.Initiate)
		auth.POST("/:platform/refresh", authHandler.Refresh)
		auth.DELETE("/:platform", authHandler.Disconnect)
	}

	publish := api.Group("/publish")
	{
		publish.POST("/:platform", publishHandler.Enqueue)
		publish.GET("/jobs", publishHandler.ListJobs)
		publish.GET("/jobs/:id", publishHandler.JobStatus)
	}

	if hub != nil {
		api.GET("/publish/stream", hub.Serve)
	}

	return router
}
