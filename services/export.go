package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/phillip/contribution-pipeline-go/models"
)

// retryPolicy bounds the attempts of one exporter send. One attempt is
// fire-once.
type retryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// ErrNoActiveCampaign is returned by ExportPending when no campaign is active.
var ErrNoActiveCampaign = errors.New("no active campaign")

// ExportSummary reports a batch re-export.
type ExportSummary struct {
	Pending  int `json:"pending"`
	Exported int `json:"exported"`
	Failed   int `json:"failed"`
}

// exportOne sends c to every active exporter and marks it processed when all
// of them accept it. Failures are logged and never abort the ingestion.
func (i *Ingestor) exportOne(ctx context.Context, ch channel, c *models.Contribution) bool {
	if i.integrations == nil {
		return false
	}
	exporters := i.integrations.Exporters(ctx)
	if len(exporters) == 0 {
		return false
	}

	ok := true
	for _, exp := range exporters {
		err := i.withRetry(ctx, func(ctx context.Context) error { return exp.Send(ctx, c) })
		if err != nil {
			ok = false
			i.logMessage(ctx, models.LevelWarning, ch.webhook, "Export to "+exp.Name()+" failed",
				map[string]any{"contributionId": c.ID.Hex(), "error": err.Error()})
		}
	}
	if !ok {
		return false
	}
	return i.markProcessed(ctx, ch.webhook, c)
}

// ExportPending re-sends every unprocessed contribution of the active campaign.
// Exporters able to append in bulk receive a single batch.
func (i *Ingestor) ExportPending(ctx context.Context) (*ExportSummary, error) {
	const service = "EXPORT"

	storeCtx, cancel := storeContext(ctx)
	campaign, err := i.store.GetActiveCampaign(storeCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("load active campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrNoActiveCampaign
	}

	unprocessed := false
	storeCtx, cancel = storeContext(ctx)
	pending, err := i.store.ListContributions(storeCtx, models.ContributionFilter{
		CampaignID: &campaign.ID,
		Processed:  &unprocessed,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list pending contributions: %w", err)
	}

	summary := &ExportSummary{Pending: len(pending)}
	if len(pending) == 0 || i.integrations == nil {
		return summary, nil
	}
	exporters := i.integrations.Exporters(ctx)
	if len(exporters) == 0 {
		return summary, nil
	}

	accepted := make([]bool, len(pending))
	for k := range accepted {
		accepted[k] = true
	}

	for _, exp := range exporters {
		if batch, ok := exp.(batchExporter); ok {
			err := i.withRetry(ctx, func(ctx context.Context) error { return batch.AppendContributions(ctx, pending) })
			if err != nil {
				i.logMessage(ctx, models.LevelWarning, service, "Batch export to "+exp.Name()+" failed",
					map[string]any{"count": len(pending), "error": err.Error()})
				for k := range accepted {
					accepted[k] = false
				}
			}
			continue
		}
		for k := range pending {
			c := &pending[k]
			if err := i.withRetry(ctx, func(ctx context.Context) error { return exp.Send(ctx, c) }); err != nil {
				accepted[k] = false
				i.logMessage(ctx, models.LevelWarning, service, "Export to "+exp.Name()+" failed",
					map[string]any{"contributionId": c.ID.Hex(), "error": err.Error()})
			}
		}
	}

	for k := range pending {
		if accepted[k] && i.markProcessed(ctx, service, &pending[k]) {
			summary.Exported++
		} else {
			summary.Failed++
		}
	}

	i.logMessage(ctx, models.LevelInfo, service, "Re-exported pending contributions", summary)
	return summary, nil
}

func (i *Ingestor) markProcessed(ctx context.Context, service string, c *models.Contribution) bool {
	storeCtx, cancel := storeContext(ctx)
	defer cancel()
	if err := i.store.MarkProcessed(storeCtx, c.ID); err != nil {
		i.logMessage(ctx, models.LevelError, service, "Could not mark contribution processed",
			map[string]any{"contributionId": c.ID.Hex(), "error": err.Error()})
		return false
	}
	c.Processed = true
	return true
}

// withRetry runs call up to the policy's attempt limit, each attempt bounded
// by the call timeout.
func (i *Ingestor) withRetry(ctx context.Context, call func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= i.retry.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, i.callTimeout)
		err = call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < i.retry.maxAttempts {
			i.log.Warn().Err(err).Int("attempt", attempt).Msg("export attempt failed")
			if i.retry.delay > 0 {
				i.sleep(i.retry.delay)
			}
		}
	}
	return err
}
