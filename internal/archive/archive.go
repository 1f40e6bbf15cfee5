// Package archive batches emitted records and flushes them to long-term
// storage as Avro or Parquet files.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	internalbuffer "github.com/jittakal/kafsuppress/internal/buffer"
	"github.com/jittakal/kafsuppress/internal/codec"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
	"github.com/jittakal/kafsuppress/pkg/storage"
)

// Config contains archive coordinator configuration.
type Config struct {
	Format           encoder.FileFormat
	MaxBufferBytes   int64
	MaxBufferRecords int
	FlushInterval    time.Duration
	// RenderValue, when set, renders raw change values into their textual
	// form before archival. Records whose values fail to render are
	// archived with the raw bytes.
	RenderValue codec.ValueRenderer
}

// Archiver accumulates emitted records per partition and writes a file
// whenever the rotation policy trips. Emission downstream never waits on a
// storage write; only Append's buffer insertion happens on the hot path
// unless the batch is due.
type Archiver struct {
	config  Config
	buffers *internalbuffer.Manager
	writer  storage.Writer
	router  storage.Router
	policy  storage.RotationPolicy
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates an archive coordinator.
func New(
	config Config,
	writer storage.Writer,
	router storage.Router,
	policy storage.RotationPolicy,
	logger *slog.Logger,
) (*Archiver, error) {
	if writer == nil {
		return nil, fmt.Errorf("storage writer is required")
	}
	if router == nil {
		return nil, fmt.Errorf("storage router is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("rotation policy is required")
	}

	if config.FlushInterval <= 0 {
		config.FlushInterval = 30 * time.Second
	}

	a := &Archiver{
		config:  config,
		buffers: internalbuffer.NewManager(config.MaxBufferBytes, config.MaxBufferRecords),
		writer:  writer,
		router:  router,
		policy:  policy,
		logger:  logger,
		done:    make(chan struct{}),
	}

	a.wg.Add(1)
	go a.flushLoop()

	logger.Info("archive coordinator created",
		"format", config.Format,
		"flush_interval", config.FlushInterval,
		"max_buffer_records", config.MaxBufferRecords,
	)

	return a, nil
}

// Append adds an emitted record to its partition batch, flushing the batch
// first if the rotation policy says it is due.
func (a *Archiver) Append(ctx context.Context, record *changefeed.EmittedRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	partitionID := record.Context.PartitionID()
	buf := a.buffers.GetOrCreate(partitionID)

	entry := *record
	if a.config.RenderValue != nil && !entry.Tombstone && len(entry.Value) > 0 {
		rendered, err := a.config.RenderValue(entry.Value)
		if err != nil {
			a.logger.Warn("archiving raw value, render failed",
				"partition", partitionID.String(),
				"error", err,
			)
		} else {
			entry.Value = []byte(rendered)
		}
	}

	if err := buf.Add(entry); err != nil {
		// Buffer at capacity: flush the batch and retry once.
		if flushErr := a.flushPartition(ctx, partitionID); flushErr != nil {
			return fmt.Errorf("flush on full buffer: %w", flushErr)
		}
		if err := buf.Add(entry); err != nil {
			return fmt.Errorf("buffer record after flush: %w", err)
		}
	}

	if a.policy.ShouldRotate(buf.Stats()) {
		return a.flushPartition(ctx, partitionID)
	}

	return nil
}

// Flush writes out every non-empty partition batch.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushAll(ctx)
}

// Close flushes all pending batches and stops the background flusher.
func (a *Archiver) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	err := a.flushAll(context.Background())
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()

	if closeErr := a.writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	a.logger.Info("archive coordinator closed")
	return err
}

// flushLoop periodically flushes batches so slow partitions still age out
// of memory within the rotation policy's duration limit.
func (a *Archiver) flushLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.mu.Lock()
			if a.closed {
				a.mu.Unlock()
				return
			}
			for partitionID, buf := range a.buffers.All() {
				if buf.IsEmpty() {
					continue
				}
				if !a.policy.ShouldRotate(buf.Stats()) {
					continue
				}
				if err := a.flushPartition(context.Background(), partitionID); err != nil {
					a.logger.Error("periodic flush failed",
						"topic", partitionID.Topic,
						"partition", partitionID.Partition,
						"error", err,
					)
				}
			}
			a.mu.Unlock()
		}
	}
}

// flushAll flushes every partition batch. Callers hold a.mu.
func (a *Archiver) flushAll(ctx context.Context) error {
	var firstErr error
	for partitionID := range a.buffers.All() {
		if err := a.flushPartition(ctx, partitionID); err != nil {
			a.logger.Error("flush failed",
				"topic", partitionID.Topic,
				"partition", partitionID.Partition,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// flushPartition drains one partition batch and writes it. Callers hold a.mu.
func (a *Archiver) flushPartition(ctx context.Context, partitionID changefeed.PartitionID) error {
	buf := a.buffers.GetOrCreate(partitionID)
	records := buf.Drain()
	if len(records) == 0 {
		return nil
	}

	// Route by the first record's event time so files partition by when
	// the updates happened, not when the batch was flushed.
	path := a.router.Route(partitionID, records[0].Timestamp)

	bytesWritten, err := a.writer.Write(ctx, records, path, a.config.Format)
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}

	a.logger.Info("wrote batch to storage",
		"topic", partitionID.Topic,
		"partition", partitionID.Partition,
		"records", len(records),
		"bytes", bytesWritten,
		"path", path,
	)

	return nil
}

// Protocol returns the path protocol for a storage backend name.
func Protocol(backend string) string {
	switch backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	case "file":
		return "file"
	default:
		return "file"
	}
}
