// Package encoder implements archive file format encoders.
package encoder

import (
	"fmt"
	"os"
	"time"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// EmittedRecordParquet represents the Parquet schema for archived emissions.
// Uses native Parquet types for Athena compatibility, including TIMESTAMP_MICROS
// for time fields.
type EmittedRecordParquet struct {
	Key   []byte `parquet:"key"`
	Value []byte `parquet:"value,optional"`

	// Event time of the emitted update in epoch millis
	EventTimestampMS int64 `parquet:"event_timestamp_ms"`
	Tombstone        bool  `parquet:"tombstone"`

	// Changefeed origin fields
	SourceTopic     string `parquet:"source_topic,dict"`
	SourcePartition int32  `parquet:"source_partition"`
	SourceOffset    int64  `parquet:"source_offset"`

	// Archive metadata
	EmittedAt time.Time `parquet:"emitted_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Uses Apache parquet-go library for full Athena/Hive compatibility with proper metadata.
// Supports multiple compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy) // Default to Snappy
	}
}

// Encode writes records to a Parquet file using Apache parquet-go.
// Creates files with proper Hive-compatible metadata for Athena queries.
func (e *ParquetEncoder) Encode(filePath string, records []changefeed.EmittedRecord) (*encoder.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	// Create output file
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// Convert records to Parquet schema
	parquetRecords := make([]EmittedRecordParquet, len(records))
	for i, record := range records {
		parquetRecords[i] = convertToParquetRecord(record)
	}

	// Create schema from struct
	schema := parquet.SchemaOf(new(EmittedRecordParquet))

	// Write Parquet file with compression
	writer := parquet.NewGenericWriter[EmittedRecordParquet](
		file,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("kafka-suppress", "1.0", "0"),
	)

	// Write all records
	if _, err := writer.Write(parquetRecords); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	// Flush and close writer
	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	// Close file before getting stats to ensure all data is flushed
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	stats := &encoder.FileStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: time.Now(),
		LastWriteTime:  time.Now(),
	}

	return stats, nil
}

// convertToParquetRecord converts an emitted record to its Parquet row.
func convertToParquetRecord(record changefeed.EmittedRecord) EmittedRecordParquet {
	return EmittedRecordParquet{
		Key:              record.Key,
		Value:            record.Value,
		EventTimestampMS: record.Timestamp,
		Tombstone:        record.Tombstone,
		SourceTopic:      record.Context.Topic,
		SourcePartition:  record.Context.Partition,
		SourceOffset:     record.Context.Offset,
		EmittedAt:        record.EmittedAt,
	}
}

// Format returns the file format.
func (e *ParquetEncoder) Format() encoder.FileFormat {
	return encoder.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
