// Package storage defines interfaces for archive storage operations.
//
// This package provides abstractions for writing emitted records to various
// storage backends (S3, GCS, Azure Blob, local filesystem).
package storage

import (
	"context"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
)

// Writer writes emitted records to storage.
type Writer interface {
	// Write writes records to storage at the specified path.
	// Returns the number of bytes written.
	Write(ctx context.Context, records []changefeed.EmittedRecord, path string, format encoder.FileFormat) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for emitted records based on
// partitioning strategy.
type Router interface {
	// Route returns the storage path for a partition at a given time.
	// timestamp is the record's event time in epoch millis.
	Route(partitionID changefeed.PartitionID, timestamp int64) string
}

// RotationPolicy determines when to flush a pending archive batch to storage.
type RotationPolicy interface {
	// ShouldRotate returns true if the batch should be flushed based on stats.
	ShouldRotate(stats encoder.FileStats) bool
}
