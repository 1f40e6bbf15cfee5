package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/consumer"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.Publisher = (*SaramaPublisher)(nil)

// ProducerConfig contains downstream producer configuration.
type ProducerConfig struct {
	Topic        string
	RequiredAcks string
	MaxRetries   int
	Idempotent   bool
}

// PublisherMetrics defines metrics operations for the downstream publisher.
type PublisherMetrics interface {
	IncMessagesPublished(topic string, status string)
	ObservePublishLatency(topic string, duration float64)
}

// SaramaPublisher publishes emitted records to the downstream topic using a
// synchronous Sarama producer. Tombstones are published with a nil value so
// compacted downstream topics drop the key.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	config   ProducerConfig
	logger   *slog.Logger
	metrics  PublisherMetrics
	mu       sync.RWMutex
	closed   bool
}

// NewSaramaPublisher creates a new downstream publisher.
func NewSaramaPublisher(
	bootstrapServers []string,
	securityConfig ConsumerConfig,
	producerConfig ProducerConfig,
	logger *slog.Logger,
	metrics PublisherMetrics,
) (*SaramaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = requiredAcks(producerConfig.RequiredAcks)
	saramaConfig.Producer.Retry.Max = producerConfig.MaxRetries
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	if producerConfig.Idempotent {
		saramaConfig.Producer.Idempotent = true
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Security configuration (reuse consumer security)
	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("downstream publisher created",
		"bootstrap_servers", bootstrapServers,
		"topic", producerConfig.Topic,
		"idempotent", producerConfig.Idempotent,
	)

	return &SaramaPublisher{
		producer: producer,
		config:   producerConfig,
		logger:   logger,
		metrics:  metrics,
		closed:   false,
	}, nil
}

// Publish publishes an emitted record to the downstream topic.
func (p *SaramaPublisher) Publish(ctx context.Context, record *changefeed.EmittedRecord) error {
	startTime := time.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrProducerClosed
	}

	// Upstream headers are echoed, then provenance headers appended.
	headers := make([]sarama.RecordHeader, 0, len(record.Context.Headers)+3)
	for k, v := range record.Context.Headers {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}
	headers = append(headers,
		sarama.RecordHeader{
			Key:   []byte("source_topic"),
			Value: []byte(record.Context.Topic),
		},
		sarama.RecordHeader{
			Key:   []byte("source_partition"),
			Value: []byte(fmt.Sprintf("%d", record.Context.Partition)),
		},
		sarama.RecordHeader{
			Key:   []byte("source_offset"),
			Value: []byte(fmt.Sprintf("%d", record.Context.Offset)),
		},
	)

	msg := &sarama.ProducerMessage{
		Topic:     p.config.Topic,
		Key:       sarama.ByteEncoder(record.Key),
		Headers:   headers,
		Timestamp: time.UnixMilli(record.Timestamp),
	}
	if !record.Tombstone {
		msg.Value = sarama.ByteEncoder(record.Value)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish record downstream",
			"error", err,
			"topic", p.config.Topic,
			"source_topic", record.Context.Topic,
			"source_partition", record.Context.Partition,
			"source_offset", record.Context.Offset,
		)
		if p.metrics != nil {
			p.metrics.IncMessagesPublished(p.config.Topic, "failure")
		}
		return fmt.Errorf("failed to send message downstream: %w", err)
	}

	p.logger.Debug("published record downstream",
		"topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"tombstone", record.Tombstone,
		"timestamp", record.Timestamp,
	)

	if p.metrics != nil {
		p.metrics.IncMessagesPublished(p.config.Topic, "success")
		p.metrics.ObservePublishLatency(p.config.Topic, time.Since(startTime).Seconds())
	}

	return nil
}

// Close closes the publisher.
func (p *SaramaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.logger.Info("closing downstream publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("downstream publisher closed")
	return nil
}

// requiredAcks converts the RequiredAcks config to Sarama's constant.
func requiredAcks(acks string) sarama.RequiredAcks {
	switch acks {
	case "none", "0":
		return sarama.NoResponse
	case "leader", "1":
		return sarama.WaitForLocal
	case "all", "-1":
		return sarama.WaitForAll
	default:
		return sarama.WaitForAll
	}
}
