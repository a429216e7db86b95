package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
	parser "github.com/phillip/contribution-pipeline-go/parser"
	services "github.com/phillip/contribution-pipeline-go/services"
)

// Webhook handlers answer 200 with the ingestion outcome, including the
// expected "nothing extracted" outcomes, and 500 only on unexpected failures.

func SMSWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload services.SMSPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respond(c, cfg, "sms")(cfg.Ingestor.HandleSMS(c.Request.Context(), payload))
	}
}

func EmailWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload services.EmailPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respond(c, cfg, "email")(cfg.Ingestor.HandleEmail(c.Request.Context(), payload))
	}
}

func WhatsAppWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env parser.WhatsAppEnvelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respond(c, cfg, "whatsapp")(cfg.Ingestor.HandleWhatsApp(c.Request.Context(), env))
	}
}

func respond(c *gin.Context, cfg *config.Config, channel string) func(*services.Result, error) {
	return func(res *services.Result, err error) {
		if err != nil {
			if cfg.Log != nil {
				cfg.Log.Error().Err(err).Str("channel", channel).Msg("webhook failed")
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process " + channel + " webhook"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
	}
}

// VerifyWhatsAppWebhook answers the subscribe handshake of the WhatsApp
// Business platform by echoing hub.challenge.
func VerifyWhatsAppWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode != "subscribe" || cfg.WhatsApp.VerifyToken == "" || token != cfg.WhatsApp.VerifyToken {
			c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
			return
		}
		c.String(http.StatusOK, challenge)
	}
}
