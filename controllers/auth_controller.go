package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
	utils "github.com/phillip/contribution-pipeline-go/utils"
)

// ---------------- LOGIN ----------------
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(cfg.Auth.AdminUsername)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(input.Password), []byte(cfg.Auth.AdminPassword)) == 1
		if !userOK || !passOK {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, expires, err := utils.GenerateToken(cfg.Auth.JWTSecret, input.Username, cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_at":   expires.UTC(),
		})
	}
}
