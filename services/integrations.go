package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	models "github.com/phillip/contribution-pipeline-go/models"
	"github.com/phillip/contribution-pipeline-go/store"
	"github.com/phillip/contribution-pipeline-go/utils"
)

// Exporter forwards a persisted contribution to a downstream system. A nil
// error means the record was accepted.
type Exporter interface {
	Name() string
	Send(ctx context.Context, c *models.Contribution) error
}

// batchExporter is implemented by exporters that accept many records in one
// call.
type batchExporter interface {
	AppendContributions(ctx context.Context, cs []models.Contribution) error
}

// Confirmer replies to the contributor on the channel they used.
type Confirmer interface {
	SendConfirmation(ctx context.Context, c *models.Contribution, campaignName string) error
}

// Integrations resolves the outbound integrations active for one ingestion.
type Integrations interface {
	Exporters(ctx context.Context) []Exporter
	// Confirmer returns nil when no confirmation channel is configured.
	Confirmer(ctx context.Context) Confirmer
}

var validate = validator.New()

// ErrUnknownIntegration is returned for an integration type the pipeline does
// not implement.
var ErrUnknownIntegration = errors.New("unknown integration type")

// DecodeIntegrationConfig parses and validates the config blob of typ.
func DecodeIntegrationConfig(typ, raw string) (any, error) {
	var dst any
	switch typ {
	case models.IntegrationSheets:
		dst = &models.SheetsConfig{}
	case models.IntegrationKafka:
		dst = &models.KafkaConfig{}
	case models.IntegrationWhatsApp:
		dst = &models.WhatsAppConfig{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegration, typ)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", typ, err)
	}
	if err := validate.Struct(dst); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", typ, err)
	}
	return dst, nil
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

func WithSheetsOptions(opts ...utils.SheetsOption) ResolverOption {
	return func(r *Resolver) { r.sheetsOpts = append(r.sheetsOpts, opts...) }
}

func WithWhatsAppOptions(opts ...utils.WhatsAppOption) ResolverOption {
	return func(r *Resolver) { r.whatsAppOpts = append(r.whatsAppOpts, opts...) }
}

// Resolver reads integration configs from the store on every call so changes
// made through the admin API apply to the next ingestion.
type Resolver struct {
	store    store.Store
	producer sarama.SyncProducer
	timeout  time.Duration
	log      *zerolog.Logger

	sheetsOpts   []utils.SheetsOption
	whatsAppOpts []utils.WhatsAppOption
}

// NewResolver builds a resolver. producer may be nil when no Kafka brokers are
// configured; KAFKA integrations are then skipped.
func NewResolver(st store.Store, producer sarama.SyncProducer, timeout time.Duration, log *zerolog.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	r := &Resolver{store: st, producer: producer, timeout: timeout, log: log}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Resolver) Exporters(ctx context.Context) []Exporter {
	var out []Exporter

	if cfg, ok := r.active(ctx, models.IntegrationSheets); ok {
		sc := cfg.(*models.SheetsConfig)
		client, err := utils.NewSheetsClient(*sc, r.timeout, r.sheetsOpts...)
		if err != nil {
			r.log.Warn().Err(err).Str("integration", models.IntegrationSheets).Msg("integration unusable")
		} else {
			out = append(out, client)
		}
	}

	if cfg, ok := r.active(ctx, models.IntegrationKafka); ok {
		if r.producer == nil {
			r.log.Warn().Str("integration", models.IntegrationKafka).Msg("kafka integration active but no brokers configured")
		} else if exp, err := utils.NewKafkaExporter(r.producer, *cfg.(*models.KafkaConfig)); err != nil {
			r.log.Warn().Err(err).Str("integration", models.IntegrationKafka).Msg("integration unusable")
		} else {
			out = append(out, exp)
		}
	}
	return out
}

func (r *Resolver) Confirmer(ctx context.Context) Confirmer {
	cfg, ok := r.active(ctx, models.IntegrationWhatsApp)
	if !ok {
		return nil
	}
	client, err := utils.NewWhatsAppClient(*cfg.(*models.WhatsAppConfig), r.timeout, r.whatsAppOpts...)
	if err != nil {
		r.log.Warn().Err(err).Str("integration", models.IntegrationWhatsApp).Msg("integration unusable")
		return nil
	}
	return client
}

// active loads the decoded config of typ when it exists and is active. Lookup
// and decode failures leave the integration absent.
func (r *Resolver) active(ctx context.Context, typ string) (any, bool) {
	ic, err := r.store.GetIntegration(ctx, typ)
	if err != nil {
		r.log.Warn().Err(err).Str("integration", typ).Msg("could not load integration")
		return nil, false
	}
	if ic == nil || !ic.IsActive {
		return nil, false
	}
	cfg, err := DecodeIntegrationConfig(typ, ic.Config)
	if err != nil {
		r.log.Warn().Err(err).Str("integration", typ).Msg("integration config rejected")
		r.recordRejected(ctx, typ, err)
		return nil, false
	}
	return cfg, true
}

// recordRejected leaves a WARNING system log for an unusable stored config so
// the failure shows up next to the pipeline logs.
func (r *Resolver) recordRejected(ctx context.Context, typ string, cause error) {
	data, _ := json.Marshal(map[string]string{"type": typ, "error": cause.Error()})
	entry := &models.SystemLog{
		Level:   models.LevelWarning,
		Service: "INTEGRATIONS",
		Message: fmt.Sprintf("Invalid %s integration config ignored", typ),
		Data:    string(data),
	}
	storeCtx, cancel := storeContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := r.store.CreateLog(storeCtx, entry); err != nil {
		r.log.Error().Err(err).Str("integration", typ).Msg("could not write system log")
	}
}
