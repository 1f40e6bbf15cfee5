// Package consumer defines interfaces for the suppression stage's Kafka
// endpoints.
//
// This package provides abstractions for consuming changefeed records from
// the upstream topic and publishing emitted records downstream.
package consumer

import (
	"context"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

// Consumer reads change records from the upstream changefeed topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for records and errors.
	Consume(ctx context.Context) (<-chan *changefeed.ConsumedRecord, <-chan error, error)

	// Commit commits the offset for a partition.
	Commit(ctx context.Context, partition changefeed.PartitionID, offset int64) error

	// Close closes the consumer and releases resources.
	Close() error
}

// Publisher publishes emitted records to the downstream topic.
type Publisher interface {
	// Publish sends an emitted record downstream. A tombstone is published
	// with a nil value.
	Publish(ctx context.Context, record *changefeed.EmittedRecord) error

	// Close closes the publisher and releases resources.
	Close() error
}
