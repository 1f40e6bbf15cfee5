package kafka

import (
	"context"
	goerrors "errors"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

func TestRequiredAcks(t *testing.T) {
	tests := []struct {
		name string
		acks string
		want sarama.RequiredAcks
	}{
		{"none", "none", sarama.NoResponse},
		{"zero", "0", sarama.NoResponse},
		{"leader", "leader", sarama.WaitForLocal},
		{"one", "1", sarama.WaitForLocal},
		{"all", "all", sarama.WaitForAll},
		{"minus one", "-1", sarama.WaitForAll},
		{"empty defaults to all", "", sarama.WaitForAll},
		{"unknown defaults to all", "some", sarama.WaitForAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requiredAcks(tt.acks); got != tt.want {
				t.Errorf("requiredAcks(%q) = %v, want %v", tt.acks, got, tt.want)
			}
		})
	}
}

func TestSaramaPublisher_PublishAfterClose(t *testing.T) {
	publisher := &SaramaPublisher{
		config: ProducerConfig{Topic: "aggregates-final"},
		logger: slog.Default(),
		closed: true,
	}

	record := &changefeed.EmittedRecord{
		Key:       []byte("key"),
		Value:     []byte("value"),
		Timestamp: 100,
	}

	err := publisher.Publish(context.Background(), record)
	if !goerrors.Is(err, errors.ErrProducerClosed) {
		t.Errorf("Publish() error = %v, want ErrProducerClosed", err)
	}
}

func TestSaramaPublisher_CloseIdempotent(t *testing.T) {
	publisher := &SaramaPublisher{
		config: ProducerConfig{Topic: "aggregates-final"},
		logger: slog.Default(),
		closed: true,
	}

	if err := publisher.Close(); err != nil {
		t.Errorf("Close() on closed publisher error = %v", err)
	}
}

func TestProducerConfig_Defaults(t *testing.T) {
	config := ProducerConfig{Topic: "aggregates-final"}

	if config.RequiredAcks == "" {
		config.RequiredAcks = "all"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	if config.RequiredAcks != "all" {
		t.Errorf("RequiredAcks = %v, want all", config.RequiredAcks)
	}
	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v, want 3", config.MaxRetries)
	}
}
