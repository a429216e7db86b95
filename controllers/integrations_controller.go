package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
	models "github.com/phillip/contribution-pipeline-go/models"
	services "github.com/phillip/contribution-pipeline-go/services"
	utils "github.com/phillip/contribution-pipeline-go/utils"
)

func integrationType(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("type")))
}

// ---------------- LIST ----------------
func ListIntegrations(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := storeContext()
		defer cancel()

		integrations, err := cfg.DB.ListIntegrations(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch integrations"})
			return
		}

		if len(integrations) == 0 {
			c.JSON(http.StatusOK, []models.IntegrationConfig{})
			return
		}

		// --- Pick the most recently updated integration ---
		latest := integrations[0]
		for _, ic := range integrations {
			if ic.UpdatedAt.After(latest.UpdatedAt) {
				latest = ic
			}
		}

		if notModified(c, utils.GenerateETag(latest.ID, latest.UpdatedAt)) {
			return
		}
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, integrations)
	}
}

// ---------------- GET ----------------
func GetIntegration(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := storeContext()
		defer cancel()

		integration, err := cfg.DB.GetIntegration(ctx, integrationType(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch integration"})
			return
		}
		if integration == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
			return
		}

		if notModified(c, utils.GenerateETag(integration.ID, integration.UpdatedAt)) {
			return
		}
		c.JSON(http.StatusOK, integration)
	}
}

// ---------------- UPSERT ----------------

// UpsertIntegration creates or replaces the config of one integration type.
// The config may be sent as a JSON object or as an already encoded string.
func UpsertIntegration(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		typ := integrationType(c)

		var input struct {
			Name     string          `json:"name"`
			Config   json.RawMessage `json:"config" binding:"required"`
			IsActive *bool           `json:"is_active"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		blob := string(input.Config)
		var encoded string
		if err := json.Unmarshal(input.Config, &encoded); err == nil {
			blob = encoded
		}

		if _, err := services.DecodeIntegrationConfig(typ, blob); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, services.ErrUnknownIntegration) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		integration := models.IntegrationConfig{
			Name:     input.Name,
			Type:     typ,
			Config:   blob,
			IsActive: true,
		}
		if integration.Name == "" {
			integration.Name = typ
		}
		if input.IsActive != nil {
			integration.IsActive = *input.IsActive
		}

		ctx, cancel := storeContext()
		defer cancel()

		stored, err := cfg.DB.UpsertIntegration(ctx, &integration)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save integration"})
			return
		}

		c.JSON(http.StatusOK, stored)
	}
}

// ---------------- DELETE ----------------
func DeleteIntegration(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		typ := integrationType(c)

		ctx, cancel := storeContext()
		defer cancel()

		if err := cfg.DB.DeleteIntegration(ctx, typ); err != nil {
			storeError(c, err, "integration", "delete")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "integration deleted", "type": typ})
	}
}
