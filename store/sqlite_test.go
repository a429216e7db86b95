package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/contribution-pipeline-go/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestCampaignActivationIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	active, err := s.GetActiveCampaign(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	first := &models.Campaign{Name: "Harambee 2024", StartDate: time.Now(), IsActive: true}
	require.NoError(t, s.CreateCampaign(ctx, first))
	second := &models.Campaign{Name: "Building Fund", StartDate: time.Now(), IsActive: true}
	require.NoError(t, s.CreateCampaign(ctx, second))

	active, err = s.GetActiveCampaign(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	on := true
	updated, err := s.UpdateCampaign(ctx, first.ID, models.CampaignUpdate{IsActive: &on})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	all, err := s.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	activeCount := 0
	for _, c := range all {
		if c.IsActive {
			activeCount++
			assert.Equal(t, first.ID, c.ID)
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestUpdateCampaignFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := &models.Campaign{Name: "Old", StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateCampaign(ctx, c))

	name, url := "New", "https://docs.google.com/spreadsheets/d/abc123/edit"
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := s.UpdateCampaign(ctx, c.ID, models.CampaignUpdate{Name: &name, GoogleSheetURL: &url, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, url, got.GoogleSheetURL)
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))
	assert.True(t, c.StartDate.Equal(got.StartDate))

	_, err = s.UpdateCampaign(ctx, primitive.NewObjectID(), models.CampaignUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCampaign(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContributionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	campaign := &models.Campaign{Name: "Harambee", StartDate: time.Now(), IsActive: true}
	require.NoError(t, s.CreateCampaign(ctx, campaign))

	c := &models.Contribution{
		CampaignID: &campaign.ID,
		SenderName: "John Doe",
		Amount:     1500,
		MemberID:   "07001",
		Date:       time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC),
		Source:     models.SourceSMS,
		Platform:   "M-Pesa",
		RawMessage: "XYZ1A2 Confirmed.",
	}
	require.NoError(t, s.CreateContribution(ctx, c))
	assert.False(t, c.ID.IsZero())
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetContribution(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.SenderName)
	assert.InDelta(t, 1500, got.Amount, 0.001)
	require.NotNil(t, got.CampaignID)
	assert.Equal(t, campaign.ID, *got.CampaignID)
	assert.False(t, got.Processed)
	assert.True(t, c.Date.Equal(got.Date))

	require.NoError(t, s.MarkProcessed(ctx, c.ID))
	got, err = s.GetContribution(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)

	member := "TF1023"
	amount := 1600.0
	got, err = s.UpdateContribution(ctx, c.ID, models.ContributionUpdate{MemberID: &member, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, "TF1023", got.MemberID)
	assert.InDelta(t, 1600, got.Amount, 0.001)
	assert.Equal(t, "John Doe", got.SenderName)

	assert.ErrorIs(t, s.MarkProcessed(ctx, primitive.NewObjectID()), ErrNotFound)
	_, err = s.GetContribution(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListContributionsFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &models.Campaign{Name: "A", StartDate: time.Now()}
	b := &models.Campaign{Name: "B", StartDate: time.Now()}
	require.NoError(t, s.CreateCampaign(ctx, a))
	require.NoError(t, s.CreateCampaign(ctx, b))

	for i, src := range []string{models.SourceSMS, models.SourceWhatsApp, models.SourceSMS} {
		campaign := a
		if i == 1 {
			campaign = b
		}
		require.NoError(t, s.CreateContribution(ctx, &models.Contribution{
			CampaignID: &campaign.ID, SenderName: "S", Amount: float64(100 * (i + 1)),
			MemberID: "1", Date: time.Now(), Source: src, Platform: "M-Pesa",
		}))
	}

	all, err := s.ListContributions(ctx, models.ContributionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.InDelta(t, 300, all[0].Amount, 0.001, "newest first")

	sms, err := s.ListContributions(ctx, models.ContributionFilter{Source: models.SourceSMS})
	require.NoError(t, err)
	assert.Len(t, sms, 2)

	ofB, err := s.ListContributions(ctx, models.ContributionFilter{CampaignID: &b.ID})
	require.NoError(t, err)
	require.Len(t, ofB, 1)
	assert.Equal(t, models.SourceWhatsApp, ofB[0].Source)

	require.NoError(t, s.MarkProcessed(ctx, all[0].ID))
	pending := false
	unprocessed, err := s.ListContributions(ctx, models.ContributionFilter{Processed: &pending})
	require.NoError(t, err)
	assert.Len(t, unprocessed, 2)

	future := time.Now().Add(time.Hour)
	none, err := s.ListContributions(ctx, models.ContributionFilter{From: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIntegrationUpsertByType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.GetIntegration(ctx, models.IntegrationSheets)
	require.NoError(t, err)
	assert.Nil(t, got)

	first, err := s.UpsertIntegration(ctx, &models.IntegrationConfig{
		Name: "Sheets", Type: models.IntegrationSheets, Config: `{"spreadsheet_id":"a","api_key":"k"}`, IsActive: true,
	})
	require.NoError(t, err)

	second, err := s.UpsertIntegration(ctx, &models.IntegrationConfig{
		Name: "Sheets v2", Type: models.IntegrationSheets, Config: `{"spreadsheet_id":"b","api_key":"k"}`, IsActive: false,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Sheets v2", second.Name)
	assert.False(t, second.IsActive)

	all, err := s.ListIntegrations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteIntegration(ctx, models.IntegrationSheets))
	assert.ErrorIs(t, s.DeleteIntegration(ctx, models.IntegrationSheets), ErrNotFound)
}

func TestSystemLogsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateLog(ctx, &models.SystemLog{
			Level: models.LevelInfo, Service: "webhook", Message: "m",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := s.ListLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Timestamp.Equal(base.Add(4*time.Minute)))
	assert.True(t, logs[1].Timestamp.Equal(base.Add(3*time.Minute)))

	logs, err = s.ListLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
}

func TestSeedDefaultCampaign(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seeded, err := SeedDefaultCampaign(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, seeded)
	assert.True(t, seeded.IsActive)

	again, err := SeedDefaultCampaign(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, again)
}
