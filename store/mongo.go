package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/phillip/contribution-pipeline-go/models"
)

const (
	colCampaigns     = "campaigns"
	colContributions = "contributions"
	colIntegrations  = "integrations"
	colSystemLogs    = "system_logs"
)

// Mongo is the MongoDB backed Store.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri, pings the server and ensures indexes.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(dbName)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colIntegrations: {{Keys: bson.D{{Key: "type", Value: 1}}, Options: options.Index().SetUnique(true)}},
		colContributions: {
			{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "processed", Value: 1}}},
		},
		colCampaigns:  {{Keys: bson.D{{Key: "is_active", Value: 1}}}},
		colSystemLogs: {{Keys: bson.D{{Key: "timestamp", Value: -1}}}},
	}
	for col, idx := range indexes {
		if _, err := m.db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, err)
		}
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ---------------- CAMPAIGNS ----------------

func (m *Mongo) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.db.Collection(colCampaigns).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find campaigns: %w", err)
	}
	campaigns := []models.Campaign{}
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("decode campaigns: %w", err)
	}
	return campaigns, nil
}

func (m *Mongo) GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var c models.Campaign
	if err := m.db.Collection(colCampaigns).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err, "campaign")
	}
	return &c, nil
}

func (m *Mongo) GetActiveCampaign(ctx context.Context) (*models.Campaign, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	var c models.Campaign
	err := m.db.Collection(colCampaigns).FindOne(ctx, bson.M{"is_active": true}, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active campaign: %w", err)
	}
	return &c, nil
}

func (m *Mongo) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt, c.UpdatedAt = now, now

	if c.IsActive {
		if err := m.deactivateOthers(ctx, c.ID); err != nil {
			return err
		}
	}
	if _, err := m.db.Collection(colCampaigns).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (m *Mongo) UpdateCampaign(ctx context.Context, id primitive.ObjectID, u models.CampaignUpdate) (*models.Campaign, error) {
	update := campaignSet(u, time.Now().UTC())

	col := m.db.Collection(colCampaigns)
	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	if u.IsActive != nil && *u.IsActive {
		if err := m.deactivateOthers(ctx, id); err != nil {
			return nil, err
		}
	}
	return m.GetCampaign(ctx, id)
}

func (m *Mongo) deactivateOthers(ctx context.Context, keep primitive.ObjectID) error {
	_, err := m.db.Collection(colCampaigns).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": keep}, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("deactivate campaigns: %w", err)
	}
	return nil
}

// ---------------- CONTRIBUTIONS ----------------

func (m *Mongo) ListContributions(ctx context.Context, f models.ContributionFilter) ([]models.Contribution, error) {
	filter := contributionFilter(f)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := m.db.Collection(colContributions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find contributions: %w", err)
	}
	contributions := []models.Contribution{}
	if err := cursor.All(ctx, &contributions); err != nil {
		return nil, fmt.Errorf("decode contributions: %w", err)
	}
	return contributions, nil
}

func (m *Mongo) GetContribution(ctx context.Context, id primitive.ObjectID) (*models.Contribution, error) {
	var c models.Contribution
	if err := m.db.Collection(colContributions).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err, "contribution")
	}
	return &c, nil
}

func (m *Mongo) CreateContribution(ctx context.Context, c *models.Contribution) error {
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().UTC()
	if _, err := m.db.Collection(colContributions).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func (m *Mongo) UpdateContribution(ctx context.Context, id primitive.ObjectID, u models.ContributionUpdate) (*models.Contribution, error) {
	update := bson.M{}
	if u.SenderName != nil {
		update["sender_name"] = *u.SenderName
	}
	if u.MemberID != nil {
		update["member_id"] = *u.MemberID
	}
	if u.Amount != nil {
		update["amount"] = *u.Amount
	}
	if len(update) == 0 {
		return m.GetContribution(ctx, id)
	}

	res, err := m.db.Collection(colContributions).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return nil, fmt.Errorf("update contribution: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return m.GetContribution(ctx, id)
}

func (m *Mongo) MarkProcessed(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.db.Collection(colContributions).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"processed": true}})
	if err != nil {
		return fmt.Errorf("mark contribution processed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------- INTEGRATIONS ----------------

func (m *Mongo) ListIntegrations(ctx context.Context) ([]models.IntegrationConfig, error) {
	opts := options.Find().SetSort(bson.D{{Key: "type", Value: 1}})
	cursor, err := m.db.Collection(colIntegrations).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find integrations: %w", err)
	}
	configs := []models.IntegrationConfig{}
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("decode integrations: %w", err)
	}
	return configs, nil
}

func (m *Mongo) GetIntegration(ctx context.Context, typ string) (*models.IntegrationConfig, error) {
	var cfg models.IntegrationConfig
	err := m.db.Collection(colIntegrations).FindOne(ctx, bson.M{"type": typ}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find integration: %w", err)
	}
	return &cfg, nil
}

func (m *Mongo) UpsertIntegration(ctx context.Context, cfg *models.IntegrationConfig) (*models.IntegrationConfig, error) {
	now := time.Now().UTC()
	_, err := m.db.Collection(colIntegrations).UpdateOne(ctx,
		bson.M{"type": cfg.Type},
		bson.M{
			"$set": bson.M{
				"name":       cfg.Name,
				"config":     cfg.Config,
				"is_active":  cfg.IsActive,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert integration: %w", err)
	}

	stored, err := m.GetIntegration(ctx, cfg.Type)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("upsert integration: %s vanished", cfg.Type)
	}
	return stored, nil
}

func (m *Mongo) DeleteIntegration(ctx context.Context, typ string) error {
	res, err := m.db.Collection(colIntegrations).DeleteOne(ctx, bson.M{"type": typ})
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------- SYSTEM LOGS ----------------

func (m *Mongo) CreateLog(ctx context.Context, l *models.SystemLog) error {
	l.ID = primitive.NewObjectID()
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	if _, err := m.db.Collection(colSystemLogs).InsertOne(ctx, l); err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

func (m *Mongo) ListLogs(ctx context.Context, limit int) ([]models.SystemLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(logLimit(limit)))
	cursor, err := m.db.Collection(colSystemLogs).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find system logs: %w", err)
	}
	logs := []models.SystemLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("decode system logs: %w", err)
	}
	return logs, nil
}

// campaignSet builds the $set document of a partial campaign update.
func campaignSet(u models.CampaignUpdate, now time.Time) bson.M {
	update := bson.M{"updated_at": now}
	if u.Name != nil {
		update["name"] = *u.Name
	}
	if u.StartDate != nil {
		update["start_date"] = *u.StartDate
	}
	if u.EndDate != nil {
		update["end_date"] = *u.EndDate
	}
	if u.GoogleSheetURL != nil {
		update["google_sheet_url"] = *u.GoogleSheetURL
	}
	if u.TargetAmount != nil {
		update["target_amount"] = *u.TargetAmount
	}
	if u.IsActive != nil {
		update["is_active"] = *u.IsActive
	}
	return update
}

func contributionFilter(f models.ContributionFilter) bson.M {
	filter := bson.M{}
	if f.CampaignID != nil {
		filter["campaign_id"] = *f.CampaignID
	}
	if f.Source != "" {
		filter["source"] = f.Source
	}
	if f.Processed != nil {
		filter["processed"] = *f.Processed
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		filter["created_at"] = created
	}
	return filter
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("find %s: %w", what, err)
}
