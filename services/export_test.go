package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/phillip/contribution-pipeline-go/models"
	"github.com/phillip/contribution-pipeline-go/store"
)

type fakeBatchExporter struct {
	fakeExporter
	batches [][]models.Contribution
}

func (f *fakeBatchExporter) AppendContributions(_ context.Context, cs []models.Contribution) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, cs)
	return nil
}

func seedPending(t *testing.T, s store.Store, campaign *models.Campaign, n int) {
	t.Helper()
	for k := 0; k < n; k++ {
		require.NoError(t, s.CreateContribution(context.Background(), &models.Contribution{
			CampaignID: &campaign.ID, SenderName: "Pending", Amount: 100, MemberID: "1",
			Date: testNow, Source: models.SourceSMS, Platform: "M-Pesa",
		}))
	}
}

func TestExportPendingBatchesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	campaign := activeCampaign(t, s)
	seedPending(t, s, campaign, 3)

	sheets := &fakeBatchExporter{fakeExporter: fakeExporter{name: models.IntegrationSheets}}
	kafka := &fakeExporter{name: models.IntegrationKafka}
	ing := newIngestor(s, nil, &fakeIntegrations{exporters: []Exporter{sheets, kafka}})

	summary, err := ing.ExportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ExportSummary{Pending: 3, Exported: 3}, summary)
	require.Len(t, sheets.batches, 1)
	assert.Len(t, sheets.batches[0], 3)
	assert.Equal(t, 0, sheets.calls, "batch exporters are not sent records one by one")
	assert.Equal(t, 3, kafka.calls)

	done := true
	processed, err := s.ListContributions(ctx, models.ContributionFilter{Processed: &done})
	require.NoError(t, err)
	assert.Len(t, processed, 3)
}

func TestExportPendingFailureLeavesRecordsPending(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	campaign := activeCampaign(t, s)
	seedPending(t, s, campaign, 2)

	bad := &fakeBatchExporter{fakeExporter: fakeExporter{name: models.IntegrationSheets, err: errors.New("quota")}}
	ing := newIngestor(s, nil, &fakeIntegrations{exporters: []Exporter{bad}})

	summary, err := ing.ExportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ExportSummary{Pending: 2, Failed: 2}, summary)

	pending := false
	left, err := s.ListContributions(ctx, models.ContributionFilter{Processed: &pending})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestExportPendingWithoutCampaign(t *testing.T) {
	s := newStore(t)
	ing := newIngestor(s, nil, &fakeIntegrations{})

	_, err := ing.ExportPending(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveCampaign)
}

func TestExportPendingWithoutExporters(t *testing.T) {
	s := newStore(t)
	campaign := activeCampaign(t, s)
	seedPending(t, s, campaign, 1)
	ing := newIngestor(s, nil, &fakeIntegrations{})

	summary, err := ing.ExportPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ExportSummary{Pending: 1}, summary)
}

func TestParseReceivedDate(t *testing.T) {
	assert.True(t, ParseReceivedDate("").IsZero())
	assert.True(t, ParseReceivedDate("yesterday").IsZero())
	assert.True(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC).Equal(ParseReceivedDate("2024-05-02")))
	assert.False(t, ParseReceivedDate("Thu, 02 May 2024 14:00:00 +0300").IsZero())
}
