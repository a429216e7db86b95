package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	models "github.com/phillip/contribution-pipeline-go/models"
)

func TestNotFound(t *testing.T) {
	err := notFound(mongo.ErrNoDocuments, "campaign")
	assert.ErrorIs(t, err, ErrNotFound)

	cause := errors.New("connection reset")
	err = notFound(cause, "campaign")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "find campaign: connection reset", err.Error())
}

func TestContributionFilter(t *testing.T) {
	campaignID := primitive.NewObjectID()
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)
	unprocessed := false

	tests := []struct {
		name   string
		filter models.ContributionFilter
		want   bson.M
	}{
		{"zero filter matches everything", models.ContributionFilter{}, bson.M{}},
		{
			name:   "campaign and source",
			filter: models.ContributionFilter{CampaignID: &campaignID, Source: models.SourceSMS},
			want:   bson.M{"campaign_id": campaignID, "source": models.SourceSMS},
		},
		{
			name:   "processed false is kept",
			filter: models.ContributionFilter{Processed: &unprocessed},
			want:   bson.M{"processed": false},
		},
		{
			name:   "date range",
			filter: models.ContributionFilter{From: &from, To: &to},
			want:   bson.M{"created_at": bson.M{"$gte": from, "$lte": to}},
		},
		{
			name:   "open ended range",
			filter: models.ContributionFilter{From: &from},
			want:   bson.M{"created_at": bson.M{"$gte": from}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contributionFilter(tt.filter))
		})
	}
}

func TestCampaignSet(t *testing.T) {
	now := time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)
	name := "Building Fund"
	target := 50000.0
	inactive := false

	assert.Equal(t, bson.M{"updated_at": now}, campaignSet(models.CampaignUpdate{}, now))
	assert.Equal(t, bson.M{
		"updated_at":    now,
		"name":          name,
		"target_amount": target,
		"is_active":     false,
	}, campaignSet(models.CampaignUpdate{Name: &name, TargetAmount: &target, IsActive: &inactive}, now))
}
