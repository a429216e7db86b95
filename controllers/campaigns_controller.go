package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/contribution-pipeline-go/config"
	models "github.com/phillip/contribution-pipeline-go/models"
	utils "github.com/phillip/contribution-pipeline-go/utils"
)

type campaignInput struct {
	Name           *string  `json:"name" form:"name"`
	StartDate      *string  `json:"start_date" form:"start_date"` // string for binding, convert later
	EndDate        *string  `json:"end_date" form:"end_date"`
	GoogleSheetURL *string  `json:"google_sheet_url" form:"google_sheet_url"`
	TargetAmount   *float64 `json:"target_amount" form:"target_amount"`
	IsActive       *bool    `json:"is_active" form:"is_active"`
}

// toUpdate converts the bound input, answering 400 on a bad date.
func (in campaignInput) toUpdate(c *gin.Context) (models.CampaignUpdate, bool) {
	u := models.CampaignUpdate{
		Name:           in.Name,
		GoogleSheetURL: in.GoogleSheetURL,
		TargetAmount:   in.TargetAmount,
		IsActive:       in.IsActive,
	}
	for _, d := range []struct {
		raw *string
		dst **time.Time
		key string
	}{{in.StartDate, &u.StartDate, "start_date"}, {in.EndDate, &u.EndDate, "end_date"}} {
		if d.raw == nil || *d.raw == "" {
			continue
		}
		parsed, ok := parseDate(*d.raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + d.key + " format, use RFC3339 or YYYY-MM-DD"})
			return u, false
		}
		*d.dst = &parsed
	}
	if u.TargetAmount != nil && *u.TargetAmount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_amount must not be negative"})
		return u, false
	}
	return u, true
}

// ---------------- CREATE ----------------
func CreateCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input campaignInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.Name == nil || *input.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		u, ok := input.toUpdate(c)
		if !ok {
			return
		}

		campaign := models.Campaign{
			Name:      *u.Name,
			StartDate: time.Now().UTC(),
			EndDate:   u.EndDate,
		}
		if u.StartDate != nil {
			campaign.StartDate = *u.StartDate
		}
		if u.GoogleSheetURL != nil {
			campaign.GoogleSheetURL = *u.GoogleSheetURL
		}
		if u.TargetAmount != nil {
			campaign.TargetAmount = *u.TargetAmount
		}
		if u.IsActive != nil {
			campaign.IsActive = *u.IsActive
		}

		ctx, cancel := storeContext()
		defer cancel()

		if err := cfg.DB.CreateCampaign(ctx, &campaign); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create campaign"})
			return
		}

		c.JSON(http.StatusCreated, campaign)
	}
}

// ---------------- LIST ----------------
func ListCampaigns(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := storeContext()
		defer cancel()

		campaigns, err := cfg.DB.ListCampaigns(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch campaigns"})
			return
		}

		if len(campaigns) == 0 {
			c.JSON(http.StatusOK, []models.Campaign{})
			return
		}

		// --- Pick the most recently updated campaign ---
		latest := campaigns[0]
		for _, cp := range campaigns {
			if cp.UpdatedAt.After(latest.UpdatedAt) {
				latest = cp
			}
		}

		if notModified(c, utils.GenerateETag(latest.ID, latest.UpdatedAt)) {
			return
		}
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, campaigns)
	}
}

// ---------------- GET ----------------
func GetCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "campaign")
		if !ok {
			return
		}

		ctx, cancel := storeContext()
		defer cancel()

		campaign, err := cfg.DB.GetCampaign(ctx, oid)
		if err != nil {
			storeError(c, err, "campaign", "fetch")
			return
		}

		if notModified(c, utils.GenerateETag(campaign.ID, campaign.UpdatedAt)) {
			return
		}
		c.JSON(http.StatusOK, campaign)
	}
}

func GetActiveCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := storeContext()
		defer cancel()

		campaign, err := cfg.DB.GetActiveCampaign(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch active campaign"})
			return
		}
		if campaign == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active campaign"})
			return
		}
		c.JSON(http.StatusOK, campaign)
	}
}

// ---------------- UPDATE ----------------
func UpdateCampaign(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "campaign")
		if !ok {
			return
		}

		var input campaignInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.Name != nil && *input.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}

		u, ok := input.toUpdate(c)
		if !ok {
			return
		}
		if u.IsEmpty() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		ctx, cancel := storeContext()
		defer cancel()

		updated, err := cfg.DB.UpdateCampaign(ctx, oid, u)
		if err != nil {
			storeError(c, err, "campaign", "update")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "campaign updated",
			"campaign": updated,
		})
	}
}
