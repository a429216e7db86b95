package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
)

func Healthz(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := storeContext()
		defer cancel()

		if _, err := cfg.DB.ListLogs(ctx, 1); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "store unreachable"})
			return
		}
		clients := 0
		if cfg.Hub != nil {
			clients = cfg.Hub.Count()
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "live_clients": clients})
	}
}
