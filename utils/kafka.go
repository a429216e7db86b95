package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	models "github.com/phillip/contribution-pipeline-go/models"
)

// NewKafkaProducer connects a synchronous producer to brokers. Every send
// waits for all in-sync replicas and is bounded by timeout.
func NewKafkaProducer(brokers []string, timeout time.Duration) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = "contribd"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = timeout
	cfg.Net.DialTimeout = timeout
	cfg.Net.ReadTimeout = timeout
	cfg.Net.WriteTimeout = timeout

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: create sync producer: %w", err)
	}
	return prod, nil
}

// KafkaExporter publishes contributions as JSON records on a topic, keyed by
// contribution id.
type KafkaExporter struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaExporter(producer sarama.SyncProducer, cfg models.KafkaConfig) (*KafkaExporter, error) {
	if producer == nil {
		return nil, errors.New("kafka: producer not initialised")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka: topic is required")
	}
	return &KafkaExporter{producer: producer, topic: cfg.Topic}, nil
}

func (e *KafkaExporter) Name() string { return models.IntegrationKafka }

func (e *KafkaExporter) Send(_ context.Context, contribution *models.Contribution) error {
	payload, err := json.Marshal(contribution)
	if err != nil {
		return fmt.Errorf("kafka: marshal contribution: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: e.topic,
		Key:   sarama.StringEncoder(contribution.ID.Hex()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
			{Key: []byte("source"), Value: []byte(contribution.Source)},
		},
	}
	if _, _, err := e.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: publish contribution: %w", err)
	}
	return nil
}
