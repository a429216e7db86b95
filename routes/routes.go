package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
	controllers "github.com/phillip/contribution-pipeline-go/controllers"
	middleware "github.com/phillip/contribution-pipeline-go/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	r.Use(cors.New(corsConfig(cfg.HTTP.CORSOrigins)))

	// public
	r.GET("/healthz", controllers.Healthz(cfg))
	r.POST("/auth/login", controllers.Login(cfg))

	// webhooks
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/sms", controllers.SMSWebhook(cfg))
		webhooks.POST("/email", controllers.EmailWebhook(cfg))
		webhooks.POST("/whatsapp", controllers.WhatsAppWebhook(cfg))
		webhooks.GET("/whatsapp", controllers.VerifyWhatsAppWebhook(cfg))
	}

	// protected
	auth := middleware.AuthMiddleware(cfg)

	r.GET("/ws", auth, controllers.LiveUpdates(cfg))

	campaigns := r.Group("/campaigns")
	campaigns.Use(auth)
	{
		campaigns.POST("", controllers.CreateCampaign(cfg))
		campaigns.GET("", controllers.ListCampaigns(cfg))
		campaigns.GET("/active", controllers.GetActiveCampaign(cfg))
		campaigns.GET("/:id", controllers.GetCampaign(cfg))
		campaigns.PATCH("/:id", controllers.UpdateCampaign(cfg))
	}

	contributions := r.Group("/contributions")
	contributions.Use(auth)
	{
		contributions.POST("", controllers.CreateContribution(cfg))
		contributions.GET("", controllers.ListContributions(cfg))
		contributions.GET("/stats", controllers.ContributionStats(cfg))
		contributions.POST("/export", controllers.ExportPending(cfg))
		contributions.GET("/:id", controllers.GetContribution(cfg))
		contributions.PATCH("/:id", controllers.UpdateContribution(cfg))
	}

	integrations := r.Group("/integrations")
	integrations.Use(auth)
	{
		integrations.GET("", controllers.ListIntegrations(cfg))
		integrations.GET("/:type", controllers.GetIntegration(cfg))
		integrations.PUT("/:type", controllers.UpsertIntegration(cfg))
		integrations.DELETE("/:type", controllers.DeleteIntegration(cfg))
	}

	r.GET("/logs", auth, controllers.ListLogs(cfg))
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"ETag", "Last-Modified"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}
