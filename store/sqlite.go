package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"

	models "github.com/phillip/contribution-pipeline-go/models"
)

// fixed width so that text ordering equals time ordering
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the single-file Store used for local runs and tests. Ids are
// ObjectID hex strings so records move freely between backends.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: sqlite has a single writer and :memory: is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT,
    google_sheet_url TEXT NOT NULL DEFAULT '',
    target_amount REAL NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contributions (
    id TEXT PRIMARY KEY,
    campaign_id TEXT,
    sender_name TEXT NOT NULL,
    amount REAL NOT NULL,
    member_id TEXT NOT NULL,
    date TEXT NOT NULL,
    source TEXT NOT NULL,
    platform TEXT NOT NULL,
    raw_message TEXT NOT NULL DEFAULT '',
    phone_number TEXT NOT NULL DEFAULT '',
    receipt_url TEXT NOT NULL DEFAULT '',
    processed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS integrations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL UNIQUE,
    config TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS system_logs (
    id TEXT PRIMARY KEY,
    level TEXT NOT NULL,
    service TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contributions_campaign ON contributions(campaign_id, created_at);
CREATE INDEX IF NOT EXISTS idx_contributions_processed ON contributions(processed);
CREATE INDEX IF NOT EXISTS idx_system_logs_timestamp ON system_logs(timestamp);
`

// ---------------- CAMPAIGNS ----------------

const campaignColumns = `id, name, start_date, end_date, google_sheet_url, target_amount, is_active, created_at, updated_at`

func (s *SQLite) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func (s *SQLite) GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id.Hex())
	return scanCampaign(row)
}

func (s *SQLite) GetActiveCampaign(ctx context.Context) (*models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE is_active = 1 ORDER BY updated_at DESC LIMIT 1`)
	c, err := scanCampaign(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

func (s *SQLite) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt, c.UpdatedAt = now, now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if c.IsActive {
			if err := deactivateOthers(ctx, tx, c.ID, now); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID.Hex(), c.Name, formatTime(c.StartDate), formatTimePtr(c.EndDate), c.GoogleSheetURL,
			c.TargetAmount, c.IsActive, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		return nil
	})
}

func (s *SQLite) UpdateCampaign(ctx context.Context, id primitive.ObjectID, u models.CampaignUpdate) (*models.Campaign, error) {
	now := time.Now().UTC()
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(now)}
	if u.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *u.Name)
	}
	if u.StartDate != nil {
		sets, args = append(sets, "start_date = ?"), append(args, formatTime(*u.StartDate))
	}
	if u.EndDate != nil {
		sets, args = append(sets, "end_date = ?"), append(args, formatTime(*u.EndDate))
	}
	if u.GoogleSheetURL != nil {
		sets, args = append(sets, "google_sheet_url = ?"), append(args, *u.GoogleSheetURL)
	}
	if u.TargetAmount != nil {
		sets, args = append(sets, "target_amount = ?"), append(args, *u.TargetAmount)
	}
	if u.IsActive != nil {
		sets, args = append(sets, "is_active = ?"), append(args, *u.IsActive)
	}
	args = append(args, id.Hex())

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE campaigns SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if u.IsActive != nil && *u.IsActive {
			return deactivateOthers(ctx, tx, id, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCampaign(ctx, id)
}

func deactivateOthers(ctx context.Context, tx *sql.Tx, keep primitive.ObjectID, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET is_active = 0, updated_at = ? WHERE id <> ? AND is_active = 1`,
		formatTime(now), keep.Hex())
	if err != nil {
		return fmt.Errorf("deactivate campaigns: %w", err)
	}
	return nil
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var (
		c                           models.Campaign
		id, start, created, updated string
		end                         sql.NullString
	)
	err := row.Scan(&id, &c.Name, &start, &end, &c.GoogleSheetURL, &c.TargetAmount, &c.IsActive, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	var perr error
	c.ID, perr = parseID(id, perr)
	c.StartDate, perr = parseTime(start, perr)
	c.CreatedAt, perr = parseTime(created, perr)
	c.UpdatedAt, perr = parseTime(updated, perr)
	if end.Valid {
		var t time.Time
		t, perr = parseTime(end.String, perr)
		c.EndDate = &t
	}
	if perr != nil {
		return nil, fmt.Errorf("scan campaign %s: %w", id, perr)
	}
	return &c, nil
}

// ---------------- CONTRIBUTIONS ----------------

const contributionColumns = `id, campaign_id, sender_name, amount, member_id, date, source, platform, raw_message, phone_number, receipt_url, processed, created_at`

func (s *SQLite) ListContributions(ctx context.Context, f models.ContributionFilter) ([]models.Contribution, error) {
	var (
		where []string
		args  []any
	)
	if f.CampaignID != nil {
		where, args = append(where, "campaign_id = ?"), append(args, f.CampaignID.Hex())
	}
	if f.Source != "" {
		where, args = append(where, "source = ?"), append(args, f.Source)
	}
	if f.Processed != nil {
		where, args = append(where, "processed = ?"), append(args, *f.Processed)
	}
	if f.From != nil {
		where, args = append(where, "created_at >= ?"), append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where, args = append(where, "created_at <= ?"), append(args, formatTime(*f.To))
	}

	query := `SELECT ` + contributionColumns + ` FROM contributions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	contributions := []models.Contribution{}
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, *c)
	}
	return contributions, rows.Err()
}

func (s *SQLite) GetContribution(ctx context.Context, id primitive.ObjectID) (*models.Contribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id.Hex())
	return scanContribution(row)
}

func (s *SQLite) CreateContribution(ctx context.Context, c *models.Contribution) error {
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().UTC()

	var campaignID sql.NullString
	if c.CampaignID != nil {
		campaignID = sql.NullString{String: c.CampaignID.Hex(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contributions (`+contributionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.Hex(), campaignID, c.SenderName, c.Amount, c.MemberID, formatTime(c.Date), c.Source,
		c.Platform, c.RawMessage, c.PhoneNumber, c.ReceiptURL, c.Processed, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateContribution(ctx context.Context, id primitive.ObjectID, u models.ContributionUpdate) (*models.Contribution, error) {
	var (
		sets []string
		args []any
	)
	if u.SenderName != nil {
		sets, args = append(sets, "sender_name = ?"), append(args, *u.SenderName)
	}
	if u.MemberID != nil {
		sets, args = append(sets, "member_id = ?"), append(args, *u.MemberID)
	}
	if u.Amount != nil {
		sets, args = append(sets, "amount = ?"), append(args, *u.Amount)
	}
	if len(sets) == 0 {
		return s.GetContribution(ctx, id)
	}
	args = append(args, id.Hex())

	res, err := s.db.ExecContext(ctx, `UPDATE contributions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetContribution(ctx, id)
}

func (s *SQLite) MarkProcessed(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contributions SET processed = 1 WHERE id = ?`, id.Hex())
	if err != nil {
		return fmt.Errorf("mark contribution processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanContribution(row rowScanner) (*models.Contribution, error) {
	var (
		c                 models.Contribution
		id, date, created string
		campaignID        sql.NullString
	)
	err := row.Scan(&id, &campaignID, &c.SenderName, &c.Amount, &c.MemberID, &date, &c.Source,
		&c.Platform, &c.RawMessage, &c.PhoneNumber, &c.ReceiptURL, &c.Processed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contribution: %w", err)
	}

	var perr error
	c.ID, perr = parseID(id, perr)
	c.Date, perr = parseTime(date, perr)
	c.CreatedAt, perr = parseTime(created, perr)
	if campaignID.Valid {
		var oid primitive.ObjectID
		oid, perr = parseID(campaignID.String, perr)
		c.CampaignID = &oid
	}
	if perr != nil {
		return nil, fmt.Errorf("scan contribution %s: %w", id, perr)
	}
	return &c, nil
}

// ---------------- INTEGRATIONS ----------------

const integrationColumns = `id, name, type, config, is_active, created_at, updated_at`

func (s *SQLite) ListIntegrations(ctx context.Context) ([]models.IntegrationConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+integrationColumns+` FROM integrations ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("query integrations: %w", err)
	}
	defer rows.Close()

	configs := []models.IntegrationConfig{}
	for rows.Next() {
		cfg, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func (s *SQLite) GetIntegration(ctx context.Context, typ string) (*models.IntegrationConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+integrationColumns+` FROM integrations WHERE type = ?`, typ)
	cfg, err := scanIntegration(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return cfg, err
}

func (s *SQLite) UpsertIntegration(ctx context.Context, cfg *models.IntegrationConfig) (*models.IntegrationConfig, error) {
	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integrations (`+integrationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			name = excluded.name,
			config = excluded.config,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		primitive.NewObjectID().Hex(), cfg.Name, cfg.Type, cfg.Config, cfg.IsActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert integration: %w", err)
	}

	stored, err := s.GetIntegration(ctx, cfg.Type)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("upsert integration: %s vanished", cfg.Type)
	}
	return stored, nil
}

func (s *SQLite) DeleteIntegration(ctx context.Context, typ string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM integrations WHERE type = ?`, typ)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIntegration(row rowScanner) (*models.IntegrationConfig, error) {
	var (
		cfg                  models.IntegrationConfig
		id, created, updated string
	)
	err := row.Scan(&id, &cfg.Name, &cfg.Type, &cfg.Config, &cfg.IsActive, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan integration: %w", err)
	}

	var perr error
	cfg.ID, perr = parseID(id, perr)
	cfg.CreatedAt, perr = parseTime(created, perr)
	cfg.UpdatedAt, perr = parseTime(updated, perr)
	if perr != nil {
		return nil, fmt.Errorf("scan integration %s: %w", id, perr)
	}
	return &cfg, nil
}

// ---------------- SYSTEM LOGS ----------------

func (s *SQLite) CreateLog(ctx context.Context, l *models.SystemLog) error {
	l.ID = primitive.NewObjectID()
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_logs (id, level, service, message, data, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID.Hex(), l.Level, l.Service, l.Message, l.Data, formatTime(l.Timestamp))
	if err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

func (s *SQLite) ListLogs(ctx context.Context, limit int) ([]models.SystemLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, service, message, data, timestamp FROM system_logs ORDER BY timestamp DESC, id DESC LIMIT ?`,
		logLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query system logs: %w", err)
	}
	defer rows.Close()

	logs := []models.SystemLog{}
	for rows.Next() {
		var (
			l      models.SystemLog
			id, ts string
		)
		if err := rows.Scan(&id, &l.Level, &l.Service, &l.Message, &l.Data, &ts); err != nil {
			return nil, fmt.Errorf("scan system log: %w", err)
		}
		var perr error
		l.ID, perr = parseID(id, perr)
		l.Timestamp, perr = parseTime(ts, perr)
		if perr != nil {
			return nil, fmt.Errorf("scan system log %s: %w", id, perr)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ---------------- helpers ----------------

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime and parseID keep the first error so scans can chain them.
func parseTime(s string, prev error) (time.Time, error) {
	if prev != nil {
		return time.Time{}, prev
	}
	return time.Parse(sqliteTime, s)
}

func parseID(s string, prev error) (primitive.ObjectID, error) {
	if prev != nil {
		return primitive.NilObjectID, prev
	}
	return primitive.ObjectIDFromHex(s)
}
