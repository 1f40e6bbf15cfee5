// Package changefeed defines the record model for updates flowing through
// the suppression stage.
//
// Records enter from an upstream Kafka changefeed topic as raw key/value
// bytes plus Kafka metadata, and leave as emitted records carrying the
// coalesced change payload.
package changefeed

import (
	"fmt"
	"time"
)

// RecordContext is the opaque origin metadata carried alongside a change
// while it is buffered, and echoed back when the change is emitted.
type RecordContext struct {
	Topic     string
	Partition int32
	Offset    int64
	Headers   map[string]string
}

// PartitionID uniquely identifies a changefeed partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// Partition returns the partition the context originated from.
func (c RecordContext) PartitionID() PartitionID {
	return PartitionID{Topic: c.Topic, Partition: c.Partition}
}

// ChangeRecord is a raw update consumed from the changefeed, before key and
// change decoding.
type ChangeRecord struct {
	Key       []byte
	Value     []byte
	Timestamp int64 // event time, epoch millis
	Context   RecordContext
}

// ConsumedRecord pairs a change record with the callback that marks its
// offset as processed.
type ConsumedRecord struct {
	Record     ChangeRecord
	CommitFunc func() error
}

// EmittedRecord is a suppression stage output, ready for publishing
// downstream and for archival.
type EmittedRecord struct {
	Key       []byte
	Value     []byte // encoded change envelope
	Timestamp int64  // epoch millis
	Tombstone bool
	Context   RecordContext
	EmittedAt time.Time
}

// BufferStats is a snapshot of a suppression buffer's ledger.
type BufferStats struct {
	RecordCount int
	SizeBytes   int64
	StreamTime  int64
}

// ContextSize estimates the in-memory footprint of a record context. It is
// used by the buffer's capacity ledger.
func ContextSize(c RecordContext) int64 {
	size := int64(len(c.Topic)) + 16 // partition + offset
	for k, v := range c.Headers {
		size += int64(len(k) + len(v))
	}
	return size
}
