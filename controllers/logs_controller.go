package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
	models "github.com/phillip/contribution-pipeline-go/models"
)

const maxLogLimit = 1000

// ListLogs returns the newest system log entries, ?limit= bounded.
func ListLogs(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxLogLimit)
		}

		ctx, cancel := storeContext()
		defer cancel()

		logs, err := cfg.DB.ListLogs(ctx, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch logs"})
			return
		}
		if logs == nil {
			logs = []models.SystemLog{}
		}
		c.JSON(http.StatusOK, logs)
	}
}
