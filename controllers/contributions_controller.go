package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/phillip/contribution-pipeline-go/config"
	models "github.com/phillip/contribution-pipeline-go/models"
	services "github.com/phillip/contribution-pipeline-go/services"
	utils "github.com/phillip/contribution-pipeline-go/utils"
)

// ---------------- CREATE ----------------

// CreateContribution records a manual contribution. Multipart requests may
// attach a receipt image under the "receipt" key.
func CreateContribution(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			SenderName  string  `json:"sender_name" form:"sender_name" binding:"required"`
			Amount      float64 `json:"amount" form:"amount" binding:"required,gt=0"`
			MemberID    string  `json:"member_id" form:"member_id"`
			Date        string  `json:"date" form:"date"`
			Platform    string  `json:"platform" form:"platform"`
			PhoneNumber string  `json:"phone_number" form:"phone_number"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		manual := services.ManualContribution{
			SenderName:  input.SenderName,
			Amount:      input.Amount,
			MemberID:    input.MemberID,
			Platform:    input.Platform,
			PhoneNumber: input.PhoneNumber,
		}
		if input.Date != "" {
			parsed, ok := parseDate(input.Date)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use RFC3339 or YYYY-MM-DD"})
				return
			}
			manual.Date = parsed
		}

		// --- Handle receipt upload ---
		fileHeader, err := c.FormFile("receipt")
		switch {
		case err == nil:
			if cfg.Uploader == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "receipt uploads are not configured"})
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
				return
			}
			url, err := cfg.Uploader.UploadReceipt(c.Request.Context(), file, fileHeader)
			file.Close()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "receipt upload failed",
					"details": err.Error(),
					"file":    fileHeader.Filename,
				})
				return
			}
			manual.ReceiptURL = url
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}

		res, err := cfg.Ingestor.CreateManual(c.Request.Context(), manual)
		if err != nil || res.Outcome != services.OutcomeCreated {
			discardReceipt(cfg, manual.ReceiptURL)
		}
		if err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create contribution"})
			return
		}
		if res.Outcome == services.OutcomeNoCampaign {
			c.JSON(http.StatusConflict, gin.H{"error": "no active campaign"})
			return
		}

		c.JSON(http.StatusCreated, res)
	}
}

func discardReceipt(cfg *config.Config, url string) {
	if url == "" || cfg.Uploader == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
	defer cancel()
	if err := cfg.Uploader.DeleteReceipt(ctx, url); err != nil && cfg.Log != nil {
		cfg.Log.Warn().Err(err).Str("url", url).Msg("could not delete orphaned receipt")
	}
}

// ---------------- LIST ----------------
func ListContributions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Build filter ---
		var filter models.ContributionFilter
		if raw := c.Query("campaign_id"); raw != "" {
			oid, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
				return
			}
			filter.CampaignID = &oid
		}
		if source := c.Query("source"); source != "" {
			filter.Source = strings.ToUpper(source)
		}
		if raw := c.Query("processed"); raw != "" {
			processed, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "processed must be true or false"})
				return
			}
			filter.Processed = &processed
		}
		if raw := c.Query("from"); raw != "" {
			from, ok := parseDate(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
				return
			}
			filter.From = &from
		}
		if raw := c.Query("to"); raw != "" {
			to, ok := parseDate(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
				return
			}
			filter.To = &to
		}

		ctx, cancel := storeContext()
		defer cancel()

		contributions, err := cfg.DB.ListContributions(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch contributions"})
			return
		}
		if contributions == nil {
			contributions = []models.Contribution{}
		}

		// contributions carry no update timestamp, so the ETag covers the body
		body, err := json.Marshal(contributions)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not encode contributions"})
			return
		}
		if notModified(c, utils.GenerateContentETag(body)) {
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// ---------------- GET ----------------
func GetContribution(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "contribution")
		if !ok {
			return
		}

		ctx, cancel := storeContext()
		defer cancel()

		contribution, err := cfg.DB.GetContribution(ctx, oid)
		if err != nil {
			storeError(c, err, "contribution", "fetch")
			return
		}

		c.JSON(http.StatusOK, contribution)
	}
}

// ---------------- UPDATE ----------------
func UpdateContribution(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "contribution")
		if !ok {
			return
		}

		var input struct {
			SenderName *string  `json:"sender_name" form:"sender_name"`
			MemberID   *string  `json:"member_id" form:"member_id"`
			Amount     *float64 `json:"amount" form:"amount"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := models.ContributionUpdate{
			SenderName: input.SenderName,
			MemberID:   input.MemberID,
			Amount:     input.Amount,
		}
		if update.IsEmpty() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}
		if update.Amount != nil && *update.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be greater than 0"})
			return
		}
		if update.SenderName != nil && strings.TrimSpace(*update.SenderName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sender_name must not be empty"})
			return
		}

		ctx, cancel := storeContext()
		defer cancel()

		updated, err := cfg.DB.UpdateContribution(ctx, oid, update)
		if err != nil {
			storeError(c, err, "contribution", "update")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "contribution updated", "contribution": updated})
	}
}

// ---------------- STATS ----------------

type bucket struct {
	Count int
	Total decimal.Decimal
}

// ContributionStats totals a campaign's contributions, by default the
// active one.
func ContributionStats(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := storeContext()
		defer cancel()

		var campaign *models.Campaign
		var err error
		if raw := c.Query("campaign_id"); raw != "" {
			oid, perr := primitive.ObjectIDFromHex(raw)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
				return
			}
			campaign, err = cfg.DB.GetCampaign(ctx, oid)
		} else {
			campaign, err = cfg.DB.GetActiveCampaign(ctx)
		}
		if err != nil {
			storeError(c, err, "campaign", "fetch")
			return
		}
		if campaign == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active campaign"})
			return
		}

		contributions, err := cfg.DB.ListContributions(ctx, models.ContributionFilter{CampaignID: &campaign.ID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch contributions"})
			return
		}

		total := bucket{Total: decimal.Zero}
		byPlatform := map[string]*bucket{}
		bySource := map[string]*bucket{}
		processed := 0
		for _, ctn := range contributions {
			amount := decimal.NewFromFloat(ctn.Amount)
			total.Count++
			total.Total = total.Total.Add(amount)
			addTo(byPlatform, ctn.Platform, amount)
			addTo(bySource, ctn.Source, amount)
			if ctn.Processed {
				processed++
			}
		}

		resp := gin.H{
			"campaign_id": campaign.ID.Hex(),
			"count":       total.Count,
			"total":       total.Total.StringFixed(2),
			"processed":   processed,
			"by_platform": render(byPlatform),
			"by_source":   render(bySource),
		}
		if campaign.TargetAmount > 0 {
			resp["target_amount"] = decimal.NewFromFloat(campaign.TargetAmount).StringFixed(2)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func addTo(buckets map[string]*bucket, key string, amount decimal.Decimal) {
	b, ok := buckets[key]
	if !ok {
		b = &bucket{Total: decimal.Zero}
		buckets[key] = b
	}
	b.Count++
	b.Total = b.Total.Add(amount)
}

func render(buckets map[string]*bucket) gin.H {
	out := gin.H{}
	for k, b := range buckets {
		out[k] = gin.H{"count": b.Count, "total": b.Total.StringFixed(2)}
	}
	return out
}

// ---------------- EXPORT ----------------

// ExportPending re-sends the active campaign's unprocessed contributions.
func ExportPending(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := cfg.Ingestor.ExportPending(c.Request.Context())
		if errors.Is(err, services.ErrNoActiveCampaign) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active campaign"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not export contributions"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
