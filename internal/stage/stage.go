// Package stage drives suppression across the partitions of the upstream
// changefeed.
//
// The stage owns one suppression engine per partition, created on demand as
// records arrive. Each consumed record is validated, decoded into a windowed
// key and a change envelope, and handed to its partition's engine. Emissions
// are encoded back to bytes and published downstream, and optionally appended
// to the archive.
package stage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jittakal/kafsuppress/internal/codec"
	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/consumer"
	"github.com/jittakal/kafsuppress/pkg/suppress"
)

// Key is the decoded changefeed key type processed by the stage.
type Key = suppress.Windowed[string]

// Validator checks a change record before it is decoded.
type Validator interface {
	Validate(record *changefeed.ChangeRecord) error
}

// Archiver appends emitted records to long-term storage.
type Archiver interface {
	Append(ctx context.Context, record *changefeed.EmittedRecord) error
}

// MetricsCollector defines metrics operations for the stage.
type MetricsCollector interface {
	IncRecordsBuffered(topic string, partition int32)
	IncRecordsEmitted(topic string, partition int32, reason string)
	IncTombstonesDropped(topic string, partition int32)
	SetBufferSizes(topic string, partition int32, records int64, bytes int64)
	SetStreamTime(topic string, partition int32, streamTimeMS int64)
	ObserveSuppressionDelay(topic string, partition int32, delaySeconds float64)
}

// Config contains stage configuration.
type Config struct {
	Policy      suppress.Suppressed
	KeyCodec    codec.KeyCodec
	ChangeCodec *codec.ChangeCodec
}

// Stage coordinates per-partition suppression engines.
type Stage struct {
	config    Config
	publisher consumer.Publisher
	archiver  Archiver
	validator Validator
	logger    *slog.Logger
	metrics   MetricsCollector

	processors map[changefeed.PartitionID]*partitionProcessor
	mu         sync.RWMutex
	closed     bool
}

// New creates a stage for the given policy and downstream publisher. The
// archiver and validator are optional.
func New(
	config Config,
	publisher consumer.Publisher,
	archiver Archiver,
	validator Validator,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*Stage, error) {
	if config.KeyCodec == nil || config.ChangeCodec == nil || publisher == nil {
		return nil, errors.ErrInvalidConfig
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		config:     config,
		publisher:  publisher,
		archiver:   archiver,
		validator:  validator,
		logger:     logger,
		metrics:    metrics,
		processors: make(map[changefeed.PartitionID]*partitionProcessor),
	}, nil
}

// Process handles one consumed record: validate, decode, suppress, commit.
// Records that fail validation or decoding are logged and skipped; their
// offsets are still committed so a poison record cannot wedge the partition.
func (s *Stage) Process(ctx context.Context, consumed *changefeed.ConsumedRecord) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.ErrStageClosed
	}
	s.mu.RUnlock()

	record := &consumed.Record

	if s.validator != nil {
		if err := s.validator.Validate(record); err != nil {
			s.logger.Warn("skipping invalid record",
				"error", err,
				"topic", record.Context.Topic,
				"partition", record.Context.Partition,
				"offset", record.Context.Offset,
			)
			return consumed.CommitFunc()
		}
	}

	key, err := s.config.KeyCodec.Decode(record.Key)
	if err != nil {
		s.logger.Warn("skipping record with undecodable key",
			"error", err,
			"topic", record.Context.Topic,
			"partition", record.Context.Partition,
			"offset", record.Context.Offset,
		)
		return consumed.CommitFunc()
	}

	change, err := s.config.ChangeCodec.Decode(record.Value)
	if err != nil {
		s.logger.Warn("skipping record with undecodable change envelope",
			"error", err,
			"topic", record.Context.Topic,
			"partition", record.Context.Partition,
			"offset", record.Context.Offset,
		)
		return consumed.CommitFunc()
	}

	processor, err := s.processor(record.Context.PartitionID())
	if err != nil {
		return err
	}

	if err := processor.suppressor.Process(key, change, record.Timestamp, record.Context); err != nil {
		return err
	}

	if s.metrics != nil {
		stats := processor.suppressor.Stats()
		s.metrics.SetBufferSizes(record.Context.Topic, record.Context.Partition,
			int64(stats.RecordCount), stats.SizeBytes)
		s.metrics.SetStreamTime(record.Context.Topic, record.Context.Partition, stats.StreamTime)
	}

	return consumed.CommitFunc()
}

// Run consumes records until the context is cancelled or the consumer's
// channels close.
func (s *Stage) Run(ctx context.Context, source consumer.Consumer, topics []string) error {
	if err := source.Subscribe(ctx, topics); err != nil {
		return err
	}

	records, consumeErrors, err := source.Consume(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-consumeErrors:
			if !ok {
				return nil
			}
			return err
		case consumed, ok := <-records:
			if !ok {
				return nil
			}
			if err := s.Process(ctx, consumed); err != nil {
				return err
			}
		}
	}
}

// Stats returns the per-partition buffer snapshots.
func (s *Stage) Stats() map[changefeed.PartitionID]changefeed.BufferStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[changefeed.PartitionID]changefeed.BufferStats, len(s.processors))
	for id, p := range s.processors {
		stats[id] = p.suppressor.Stats()
	}
	return stats
}

// Close marks the stage closed. Buffered entries remain unsent: suppression
// state is in-memory and rebuilt from the changefeed on restart.
func (s *Stage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for id, p := range s.processors {
		stats := p.suppressor.Stats()
		s.logger.Info("closing partition processor",
			"partition", id.String(),
			"buffered_records", stats.RecordCount,
			"buffered_bytes", stats.SizeBytes,
		)
	}
	return nil
}

// processor returns the processor for a partition, creating it on demand.
// Uses double-checked locking for efficient concurrent access.
func (s *Stage) processor(id changefeed.PartitionID) (*partitionProcessor, error) {
	s.mu.RLock()
	p, exists := s.processors[id]
	s.mu.RUnlock()

	if exists {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if p, exists := s.processors[id]; exists {
		return p, nil
	}

	p, err := s.newProcessor(id)
	if err != nil {
		return nil, err
	}
	s.processors[id] = p
	s.logger.Info("created partition processor", "partition", id.String())
	return p, nil
}

func (s *Stage) newProcessor(id changefeed.PartitionID) (*partitionProcessor, error) {
	p := &partitionProcessor{stage: s, partition: id}

	opts := []suppress.Option[Key, []byte]{
		suppress.WithLogger[Key, []byte](s.logger.With("partition", id.String())),
	}
	if s.metrics != nil {
		opts = append(opts, suppress.WithObserver[Key, []byte](&partitionObserver{
			metrics:   s.metrics,
			partition: id,
		}))
	}

	suppressor, err := suppress.NewSuppressor(s.config.Policy, p.emit, opts...)
	if err != nil {
		return nil, err
	}
	p.suppressor = suppressor
	return p, nil
}

// partitionProcessor owns the suppression engine for one partition.
type partitionProcessor struct {
	stage      *Stage
	partition  changefeed.PartitionID
	suppressor *suppress.Suppressor[Key, []byte]
}

// emit encodes an emitted change and publishes it downstream. The published
// value is the change's new side; a tombstone is published with a nil value.
func (p *partitionProcessor) emit(key Key, change suppress.Change[[]byte], timestamp int64, rc changefeed.RecordContext) error {
	emitted := &changefeed.EmittedRecord{
		Key:       p.stage.config.KeyCodec.Encode(key),
		Timestamp: timestamp,
		Tombstone: change.IsTombstone(),
		Context:   rc,
		EmittedAt: time.Now().UTC(),
	}
	if change.After != nil {
		emitted.Value = *change.After
	}

	ctx := context.Background()
	if err := p.stage.publisher.Publish(ctx, emitted); err != nil {
		return err
	}

	if p.stage.metrics != nil {
		// The engine drives this callback synchronously, so the stream time
		// snapshot reflects the tick that released the entry.
		if streamTime := p.suppressor.Stats().StreamTime; streamTime >= timestamp {
			p.stage.metrics.ObserveSuppressionDelay(rc.Topic, rc.Partition,
				float64(streamTime-timestamp)/1000.0)
		}
	}

	if p.stage.archiver != nil {
		if err := p.stage.archiver.Append(ctx, emitted); err != nil {
			// Archival is best-effort; the downstream emission already
			// succeeded and must not be retried.
			p.stage.logger.Error("failed to archive emitted record",
				"error", err,
				"partition", p.partition.String(),
			)
		}
	}
	return nil
}

// partitionObserver forwards engine notifications to the metrics collector.
type partitionObserver struct {
	metrics   MetricsCollector
	partition changefeed.PartitionID
}

func (o *partitionObserver) EntryBuffered(records int, bytes int64) {
	o.metrics.IncRecordsBuffered(o.partition.Topic, o.partition.Partition)
	o.metrics.SetBufferSizes(o.partition.Topic, o.partition.Partition, int64(records), bytes)
}

func (o *partitionObserver) EntryEmitted(reason suppress.EmitReason) {
	o.metrics.IncRecordsEmitted(o.partition.Topic, o.partition.Partition, string(reason))
}

func (o *partitionObserver) TombstoneDropped() {
	o.metrics.IncTombstonesDropped(o.partition.Topic, o.partition.Partition)
}
