// Package services runs the ingestion pipeline: parse an inbound payment
// notification, bind it to the active campaign, persist it, export it, confirm
// it and broadcast it to live clients.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/phillip/contribution-pipeline-go/broadcast"
	models "github.com/phillip/contribution-pipeline-go/models"
	"github.com/phillip/contribution-pipeline-go/parser"
	"github.com/phillip/contribution-pipeline-go/store"
)

// Outcome classifies a completed ingestion run.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeNoMessage  Outcome = "no_message"
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeNoCampaign Outcome = "no_active_campaign"
)

// Result reports what an ingestion run did. Contribution is set only for
// OutcomeCreated.
type Result struct {
	Outcome      Outcome              `json:"outcome"`
	Contribution *models.Contribution `json:"contribution,omitempty"`
	Exported     bool                 `json:"exported"`
	Confirmed    bool                 `json:"confirmed"`
	Delivered    int                  `json:"delivered"`
}

// Publisher fans an event out to live clients. *broadcast.Hub implements it.
type Publisher interface {
	Publish(ev broadcast.Event) (int, error)
}

// channel names the system-log services of one inbound transport.
type channel struct {
	source        string
	label         string
	webhook       string
	parserService string
}

var (
	smsChannel      = channel{models.SourceSMS, "SMS", "SMS_WEBHOOK", "SMS_PARSER"}
	emailChannel    = channel{models.SourceEmail, "email", "EMAIL_WEBHOOK", "EMAIL_PARSER"}
	whatsAppChannel = channel{models.SourceWhatsApp, "WhatsApp", "WHATSAPP_WEBHOOK", "WHATSAPP_PARSER"}
	manualChannel   = channel{models.SourceManual, "manual", "MANUAL_ENTRY", "MANUAL_ENTRY"}
)

// Option customises an Ingestor.
type Option func(*Ingestor)

func WithLogger(log *zerolog.Logger) Option {
	return func(i *Ingestor) {
		if log != nil {
			i.log = log
		}
	}
}

// WithRetry bounds each exporter send to maxAttempts tries spaced by delay.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(i *Ingestor) {
		if maxAttempts > 0 {
			i.retry = retryPolicy{maxAttempts: maxAttempts, delay: delay}
		}
	}
}

// WithCallTimeout bounds every single exporter or confirmation call.
func WithCallTimeout(d time.Duration) Option {
	return func(i *Ingestor) {
		if d > 0 {
			i.callTimeout = d
		}
	}
}

// WithParserOptions configures the channel parsers, e.g. their clock.
func WithParserOptions(opts ...parser.Option) Option {
	return func(i *Ingestor) { i.parserOpts = append(i.parserOpts, opts...) }
}

// Ingestor is the ingestion orchestrator. It is safe for concurrent use.
type Ingestor struct {
	store        store.Store
	hub          Publisher
	integrations Integrations
	log          *zerolog.Logger

	sms      *parser.SMSParser
	email    *parser.EmailParser
	whatsApp *parser.WhatsAppParser

	parserOpts  []parser.Option
	retry       retryPolicy
	callTimeout time.Duration
	sleep       func(time.Duration)
}

// NewIngestor wires the orchestrator. hub and integrations may be nil.
func NewIngestor(st store.Store, hub Publisher, integrations Integrations, opts ...Option) *Ingestor {
	nop := zerolog.Nop()
	i := &Ingestor{
		store:        st,
		hub:          hub,
		integrations: integrations,
		log:          &nop,
		retry:        retryPolicy{maxAttempts: 1},
		callTimeout:  10 * time.Second,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	i.sms = parser.NewSMSParser(i.parserOpts...)
	i.email = parser.NewEmailParser(i.parserOpts...)
	i.whatsApp = parser.NewWhatsAppParser(i.parserOpts...)
	return i
}

// ---------------- CHANNELS ----------------

// HandleSMS ingests one SMS gateway notification.
func (i *Ingestor) HandleSMS(ctx context.Context, p SMSPayload) (*Result, error) {
	ch := smsChannel
	i.logMessage(ctx, models.LevelInfo, ch.webhook, "Received SMS from "+p.From, p)

	parsed, ok := i.sms.Parse(p.Message)
	if !ok {
		i.logMessage(ctx, models.LevelWarning, ch.parserService, "Failed to parse SMS message",
			map[string]any{"message": p.Message})
		return &Result{Outcome: OutcomeNoMatch}, nil
	}
	parsed.PhoneNumber = strings.TrimSpace(p.From)
	return i.ingest(ctx, ch, parsed)
}

// HandleEmail ingests one forwarded payment notification email.
func (i *Ingestor) HandleEmail(ctx context.Context, p EmailPayload) (*Result, error) {
	ch := emailChannel
	i.logMessage(ctx, models.LevelInfo, ch.webhook, "Received email from "+p.From,
		map[string]any{"subject": p.Subject})

	parsed, ok := i.email.Parse(p.Subject, p.Body, ParseReceivedDate(p.ReceivedDate))
	if !ok {
		i.logMessage(ctx, models.LevelWarning, ch.parserService, "Failed to parse email message",
			map[string]any{"subject": p.Subject, "from": p.From})
		return &Result{Outcome: OutcomeNoMatch}, nil
	}
	return i.ingest(ctx, ch, parsed)
}

// HandleWhatsApp ingests the first text message of a WhatsApp Business
// webhook. Status callbacks and non-text messages yield OutcomeNoMessage.
func (i *Ingestor) HandleWhatsApp(ctx context.Context, env parser.WhatsAppEnvelope) (*Result, error) {
	ch := whatsAppChannel

	msg, ok := parser.ExtractWhatsAppMessage(env)
	if !ok {
		i.log.Debug().Str("object", env.Object).Msg("whatsapp webhook without text message")
		return &Result{Outcome: OutcomeNoMessage}, nil
	}
	i.logMessage(ctx, models.LevelInfo, ch.webhook, "Received WhatsApp message from "+msg.SenderPhone,
		map[string]any{"message": msg.Body})

	parsed, ok := i.whatsApp.Parse(msg.Body, msg.SenderPhone)
	if !ok {
		i.logMessage(ctx, models.LevelWarning, ch.parserService, "Failed to parse WhatsApp message",
			map[string]any{"message": msg.Body, "from": msg.SenderPhone})
		return &Result{Outcome: OutcomeNoMatch}, nil
	}
	return i.ingest(ctx, ch, parsed)
}

// CreateManual records an operator-entered contribution through the same
// persist, export and broadcast steps as webhook ingestion.
func (i *Ingestor) CreateManual(ctx context.Context, in ManualContribution) (*Result, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid contribution: %w", err)
	}
	ch := manualChannel
	i.logMessage(ctx, models.LevelInfo, ch.webhook, "Received manual contribution", in)

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	platform := strings.TrimSpace(in.Platform)
	if platform == "" {
		platform = "Manual"
	}
	name := parser.CleanSenderName(in.SenderName)
	if name == "" {
		name = strings.TrimSpace(in.SenderName)
	}

	member := strings.TrimSpace(in.MemberID)
	if member == "" {
		member = parser.MemberOrFallback("", in.PhoneNumber)
	}

	parsed := &parser.ParsedContribution{
		SenderName:  name,
		Amount:      in.Amount,
		MemberID:    member,
		Date:        date,
		Platform:    platform,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}
	return i.ingestWith(ctx, ch, parsed, in.ReceiptURL)
}

// ---------------- PIPELINE ----------------

func (i *Ingestor) ingest(ctx context.Context, ch channel, parsed *parser.ParsedContribution) (*Result, error) {
	return i.ingestWith(ctx, ch, parsed, "")
}

func (i *Ingestor) ingestWith(ctx context.Context, ch channel, parsed *parser.ParsedContribution, receiptURL string) (*Result, error) {
	storeCtx, cancel := storeContext(ctx)
	campaign, err := i.store.GetActiveCampaign(storeCtx)
	cancel()
	if err != nil {
		return nil, i.fail(ctx, ch, fmt.Errorf("load active campaign: %w", err))
	}
	if campaign == nil {
		i.logMessage(ctx, models.LevelError, ch.webhook, "No active campaign found", nil)
		return &Result{Outcome: OutcomeNoCampaign}, nil
	}

	contribution := &models.Contribution{
		CampaignID:  &campaign.ID,
		SenderName:  parsed.SenderName,
		Amount:      parsed.Amount,
		MemberID:    parsed.MemberID,
		Date:        parsed.Date,
		Source:      ch.source,
		Platform:    parsed.Platform,
		RawMessage:  parsed.RawMessage,
		PhoneNumber: parsed.PhoneNumber,
		ReceiptURL:  receiptURL,
	}
	storeCtx, cancel = storeContext(ctx)
	err = i.store.CreateContribution(storeCtx, contribution)
	cancel()
	if err != nil {
		return nil, i.fail(ctx, ch, fmt.Errorf("create contribution: %w", err))
	}

	// persisted: the remaining steps always run to completion
	ctx = context.WithoutCancel(ctx)
	res := &Result{Outcome: OutcomeCreated, Contribution: contribution}

	res.Exported = i.exportOne(ctx, ch, contribution)
	if ch.source == models.SourceWhatsApp {
		res.Confirmed = i.confirm(ctx, ch, contribution, campaign)
	}
	res.Delivered = i.publish(ch, contribution)

	i.logMessage(ctx, models.LevelInfo, ch.webhook, fmt.Sprintf("Successfully processed %s contribution", ch.label),
		map[string]any{
			"contributionId": contribution.ID.Hex(),
			"amount":         contribution.Amount,
			"sender":         contribution.SenderName,
		})
	return res, nil
}

func (i *Ingestor) confirm(ctx context.Context, ch channel, c *models.Contribution, campaign *models.Campaign) bool {
	if i.integrations == nil || c.PhoneNumber == "" {
		return false
	}
	confirmer := i.integrations.Confirmer(ctx)
	if confirmer == nil {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, i.callTimeout)
	defer cancel()
	if err := confirmer.SendConfirmation(callCtx, c, campaign.Name); err != nil {
		i.logMessage(ctx, models.LevelWarning, ch.webhook, "Failed to send WhatsApp confirmation",
			map[string]any{"contributionId": c.ID.Hex(), "error": err.Error()})
		return false
	}
	return true
}

func (i *Ingestor) publish(ch channel, c *models.Contribution) int {
	if i.hub == nil {
		return 0
	}
	n, err := i.hub.Publish(broadcast.Event{Type: broadcast.EventNewContribution, Data: c})
	if err != nil {
		i.log.Warn().Err(err).Str("service", ch.webhook).Str("contribution_id", c.ID.Hex()).Msg("broadcast failed")
	}
	return n
}

// storeTimeout bounds each store round trip made by the pipeline.
const storeTimeout = 5 * time.Second

func storeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, storeTimeout)
}

// fail records an unexpected failure at ERROR and hands it back to the caller.
func (i *Ingestor) fail(ctx context.Context, ch channel, err error) error {
	i.logMessage(ctx, models.LevelError, ch.webhook, fmt.Sprintf("Error processing %s webhook", ch.label),
		map[string]any{"error": err.Error()})
	return err
}

// logMessage appends a system log entry and mirrors it to the service logger.
// A failed write is reported on the service logger only.
func (i *Ingestor) logMessage(ctx context.Context, level, service, message string, data any) {
	entry := &models.SystemLog{Level: level, Service: service, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			entry.Data = string(raw)
		}
	}

	var evt *zerolog.Event
	switch level {
	case models.LevelError:
		evt = i.log.Error()
	case models.LevelWarning:
		evt = i.log.Warn()
	default:
		evt = i.log.Info()
	}
	evt = evt.Str("service", service)
	if entry.Data != "" {
		evt = evt.RawJSON("data", []byte(entry.Data))
	}
	evt.Msg(message)

	// log writes outlive a cancelled request
	storeCtx, cancel := storeContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := i.store.CreateLog(storeCtx, entry); err != nil {
		i.log.Error().Err(err).Str("service", service).Msg("could not write system log")
	}
}
