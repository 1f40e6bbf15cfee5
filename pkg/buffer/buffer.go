// Package buffer defines interfaces for batching emitted records before
// archival.
//
// Batches reduce the number of archive files written and amortize the cost
// of uploads to object storage.
package buffer

import (
	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
)

// Buffer accumulates emitted records pending an archive flush.
// All implementations must be thread-safe.
type Buffer interface {
	// Add adds a record to the buffer.
	// Returns an error if the buffer is full or capacity would be exceeded.
	Add(record changefeed.EmittedRecord) error

	// Drain removes and returns all records from the buffer.
	// The buffer is reset after draining.
	Drain() []changefeed.EmittedRecord

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() encoder.FileStats

	// IsEmpty returns true if the buffer contains no records.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}

// Manager creates and manages buffers for partitions.
type Manager interface {
	// GetOrCreate returns a buffer for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(partitionID changefeed.PartitionID) Buffer
}
