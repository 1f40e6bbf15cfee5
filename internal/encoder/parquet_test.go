package encoder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/parquet-go/parquet-go"
)

// TestParquetEncoder_AthenaCompatibility verifies that generated Parquet files
// have the correct schema and metadata for AWS Athena compatibility.
func TestParquetEncoder_AthenaCompatibility(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "athena-test.parquet")

	encoder := NewParquetEncoder("snappy")

	emittedAt := time.Now().UTC()
	records := []changefeed.EmittedRecord{
		{
			Key:       []byte("order-42"),
			Value:     []byte(`{"total": 100}`),
			Timestamp: 1700000000000,
			Context: changefeed.RecordContext{
				Topic:     "orders-agg",
				Partition: 3,
				Offset:    100,
			},
			EmittedAt: emittedAt,
		},
	}

	// Encode the records
	_, err := encoder.Encode(testFile, records)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Read and verify record count using simpler ReadFile API
	readRecords, err := parquet.ReadFile[EmittedRecordParquet](testFile)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	if len(readRecords) != len(records) {
		t.Errorf("record count = %d, want %d", len(readRecords), len(records))
	}

	if len(readRecords) > 0 {
		rec := readRecords[0]

		if string(rec.Key) != "order-42" {
			t.Errorf("key = %s, want order-42", rec.Key)
		}
		if rec.EventTimestampMS != 1700000000000 {
			t.Errorf("event_timestamp_ms = %d, want 1700000000000", rec.EventTimestampMS)
		}
		if rec.SourceTopic != "orders-agg" {
			t.Errorf("source_topic = %s, want orders-agg", rec.SourceTopic)
		}
		if rec.SourcePartition != 3 {
			t.Errorf("source_partition = %d, want 3", rec.SourcePartition)
		}

		// Verify emitted_at is a time.Time, not a string, and close to
		// expected (within 1 second due to microsecond precision)
		if rec.EmittedAt.IsZero() {
			t.Error("emitted_at should not be zero")
		}
		diff := rec.EmittedAt.Sub(emittedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Second {
			t.Errorf("emitted_at difference too large: %v", diff)
		}
	}
}

// TestParquetEncoder_CompressionCodecs tests all supported compression codecs.
func TestParquetEncoder_CompressionCodecs(t *testing.T) {
	compressions := []string{"snappy", "gzip", "lz4", "zstd", "uncompressed"}
	tempDir := t.TempDir()

	records := []changefeed.EmittedRecord{
		{
			Key:       []byte("k"),
			Value:     []byte(`{"test": "data"}`),
			Timestamp: 1700000000000,
			Context: changefeed.RecordContext{
				Topic:     "test",
				Partition: 0,
				Offset:    1,
			},
			EmittedAt: time.Now().UTC(),
		},
	}

	for _, compression := range compressions {
		t.Run(compression, func(t *testing.T) {
			encoder := NewParquetEncoder(compression)
			testFile := filepath.Join(tempDir, compression+".parquet")

			stats, err := encoder.Encode(testFile, records)
			if err != nil {
				t.Fatalf("Encode() with %s error = %v", compression, err)
			}

			if stats.RecordCount != 1 {
				t.Errorf("RecordCount = %d, want 1", stats.RecordCount)
			}

			// Verify file can be read back
			readRecs, err := parquet.ReadFile[EmittedRecordParquet](testFile)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if len(readRecs) != 1 {
				t.Errorf("read %d records, want 1", len(readRecs))
			}
		})
	}
}

// TestParquetEncoder_TombstoneHandling verifies proper NULL handling for
// tombstone values.
func TestParquetEncoder_TombstoneHandling(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "tombstone-test.parquet")

	encoder := NewParquetEncoder("snappy")

	records := []changefeed.EmittedRecord{
		{
			Key:       []byte("order-42"),
			Value:     nil,
			Timestamp: 1700000000000,
			Tombstone: true,
			Context: changefeed.RecordContext{
				Topic:     "orders-agg",
				Partition: 0,
				Offset:    1,
			},
			EmittedAt: time.Now().UTC(),
		},
	}

	_, err := encoder.Encode(testFile, records)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	readRecs, err := parquet.ReadFile[EmittedRecordParquet](testFile)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if len(readRecs) != 1 {
		t.Fatalf("read %d records, want 1", len(readRecs))
	}

	rec := readRecs[0]

	if len(rec.Value) != 0 {
		t.Errorf("value = %v, want empty for tombstone", rec.Value)
	}
	if !rec.Tombstone {
		t.Error("tombstone should be true")
	}
	if string(rec.Key) != "order-42" {
		t.Errorf("key = %s, want order-42", rec.Key)
	}
}
