// Package buffer implements batching of emitted records for archival.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/buffer"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*PartitionBuffer)(nil)

// PartitionBuffer batches emitted records for a single changefeed partition.
// It provides thread-safe buffering with size limits and record count limits.
// The buffer tracks first and last write times for file rotation decisions.
type PartitionBuffer struct {
	partitionID    changefeed.PartitionID
	records        []changefeed.EmittedRecord
	maxSizeBytes   int64
	maxRecords     int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new partition buffer.
func New(partitionID changefeed.PartitionID, maxSizeBytes int64, maxRecords int) *PartitionBuffer {
	return &PartitionBuffer{
		partitionID:  partitionID,
		records:      make([]changefeed.EmittedRecord, 0, maxRecords),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// Add adds a record to the buffer.
func (b *PartitionBuffer) Add(record changefeed.EmittedRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recordSize := estimateSize(record)

	if b.maxRecords > 0 && len(b.records) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	if b.maxSizeBytes > 0 && b.currentSize+recordSize > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.records = append(b.records, record)
	b.currentSize += recordSize

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all records from the buffer.
// The returned slice is owned by the caller and will not be modified by the buffer.
// The caller should process the records promptly as the underlying array may be
// reused after subsequent calls to Add.
func (b *PartitionBuffer) Drain() []changefeed.EmittedRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.records
	b.reset()
	return records
}

// Stats returns current buffer statistics.
func (b *PartitionBuffer) Stats() encoder.FileStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return encoder.FileStats{
		RecordCount:    len(b.records),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *PartitionBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *PartitionBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *PartitionBuffer) reset() {
	b.records = make([]changefeed.EmittedRecord, 0, b.maxRecords)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// estimateSize estimates the size of an emitted record in bytes.
func estimateSize(record changefeed.EmittedRecord) int64 {
	size := int64(len(record.Key) + len(record.Value))
	size += 8 // timestamp
	size += changefeed.ContextSize(record.Context)
	return size
}

// Manager manages batch buffers for multiple changefeed partitions.
// It provides thread-safe access to partition-specific buffers, creating them on-demand.
// Uses double-checked locking for efficient concurrent access.
type Manager struct {
	buffers      map[changefeed.PartitionID]*PartitionBuffer
	maxSizeBytes int64
	maxRecords   int
	mu           sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxRecords int) *Manager {
	return &Manager{
		buffers:      make(map[changefeed.PartitionID]*PartitionBuffer),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// GetOrCreate returns a buffer for the partition, creating if needed.
func (m *Manager) GetOrCreate(partitionID changefeed.PartitionID) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[partitionID]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, exists := m.buffers[partitionID]; exists {
		return buf
	}

	buf = New(partitionID, m.maxSizeBytes, m.maxRecords)
	m.buffers[partitionID] = buf
	return buf
}

// All returns every buffer currently managed, keyed by partition.
func (m *Manager) All() map[changefeed.PartitionID]*PartitionBuffer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buffers := make(map[changefeed.PartitionID]*PartitionBuffer, len(m.buffers))
	for id, buf := range m.buffers {
		buffers[id] = buf
	}
	return buffers
}
