// Package store persists campaigns, contributions, integration configs and
// system logs.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/contribution-pipeline-go/models"
)

// ErrNotFound is returned when a record addressed by id or type does not exist.
var ErrNotFound = errors.New("store: not found")

// DefaultLogLimit bounds ListLogs when the caller passes no limit.
const DefaultLogLimit = 100

// Store is the storage collaborator of the pipeline. Implementations must be
// safe for concurrent use.
type Store interface {
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
	GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	// GetActiveCampaign returns nil and no error when no campaign is active.
	GetActiveCampaign(ctx context.Context) (*models.Campaign, error)
	// CreateCampaign assigns ID and timestamps. An active campaign
	// deactivates every other one.
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	UpdateCampaign(ctx context.Context, id primitive.ObjectID, u models.CampaignUpdate) (*models.Campaign, error)

	// ListContributions returns matching contributions newest first.
	ListContributions(ctx context.Context, f models.ContributionFilter) ([]models.Contribution, error)
	GetContribution(ctx context.Context, id primitive.ObjectID) (*models.Contribution, error)
	// CreateContribution assigns ID and CreatedAt.
	CreateContribution(ctx context.Context, c *models.Contribution) error
	UpdateContribution(ctx context.Context, id primitive.ObjectID, u models.ContributionUpdate) (*models.Contribution, error)
	MarkProcessed(ctx context.Context, id primitive.ObjectID) error

	ListIntegrations(ctx context.Context) ([]models.IntegrationConfig, error)
	// GetIntegration returns nil and no error when no config of that type exists.
	GetIntegration(ctx context.Context, typ string) (*models.IntegrationConfig, error)
	// UpsertIntegration creates or replaces the config of cfg.Type.
	UpsertIntegration(ctx context.Context, cfg *models.IntegrationConfig) (*models.IntegrationConfig, error)
	DeleteIntegration(ctx context.Context, typ string) error

	// CreateLog assigns ID and, when unset, Timestamp.
	CreateLog(ctx context.Context, l *models.SystemLog) error
	// ListLogs returns the newest entries first; limit <= 0 means DefaultLogLimit.
	ListLogs(ctx context.Context, limit int) ([]models.SystemLog, error)

	Close(ctx context.Context) error
}

// SeedDefaultCampaign creates an active "Default Campaign" when the store has
// no campaigns at all.
func SeedDefaultCampaign(ctx context.Context, s Store) (*models.Campaign, error) {
	existing, err := s.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}
	c := &models.Campaign{
		Name:      "Default Campaign",
		StartDate: time.Now().UTC(),
		IsActive:  true,
	}
	if err := s.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func logLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	return limit
}
