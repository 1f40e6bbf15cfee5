// Package encoder implements archive file format encoders.
package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It supports optional gzip compression. Produces OCF (Object Container
// File) format compatible with Apache Spark and other Avro readers.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	schema := avroSchema()
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for archived emissions.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "EmittedRecord",
		"namespace": "com.kafka.suppress.archive",
		"fields": [
			{"name": "key", "type": "bytes"},
			{"name": "value", "type": ["null", "bytes"], "default": null},
			{"name": "event_timestamp_ms", "type": "long"},
			{"name": "tombstone", "type": "boolean"},
			{"name": "source_topic", "type": "string"},
			{"name": "source_partition", "type": "int"},
			{"name": "source_offset", "type": "long"},
			{"name": "emitted_at", "type": "string"}
		]
	}`
}

// Encode writes records to an Avro file.
func (e *AvroEncoder) Encode(filePath string, records []changefeed.EmittedRecord) (*encoder.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	// Create output file
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	var gzipWriter *gzip.Writer

	// Apply compression if specified
	if e.compression == "gzip" || e.compression == "GZIP" {
		gzipWriter = gzip.NewWriter(file)
		writer = gzipWriter
		defer gzipWriter.Close()
	}

	// Create OCF writer (Object Container File)
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     writer,
		Codec: e.codec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	// Convert and write records
	for _, record := range records {
		if err := ocfWriter.Append([]interface{}{e.convertToAvroMap(record)}); err != nil {
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
	}

	// Ensure all data is flushed
	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	// Get file info
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

// convertToAvroMap converts an emitted record to its Avro map representation.
func (e *AvroEncoder) convertToAvroMap(record changefeed.EmittedRecord) map[string]interface{} {
	avroMap := map[string]interface{}{
		"key":                record.Key,
		"event_timestamp_ms": record.Timestamp,
		"tombstone":          record.Tombstone,
		"source_topic":       record.Context.Topic,
		"source_partition":   record.Context.Partition,
		"source_offset":      record.Context.Offset,
		"emitted_at":         record.EmittedAt.Format(time.RFC3339Nano),
	}

	// Tombstones archive with a null value
	if record.Value != nil {
		avroMap["value"] = goavro.Union("bytes", record.Value)
	} else {
		avroMap["value"] = nil
	}

	return avroMap
}

// EncodeToBytes encodes records to bytes (useful for testing).
func (e *AvroEncoder) EncodeToBytes(records []changefeed.EmittedRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	var writer io.Writer = &buf

	// Apply compression if specified
	var gzipWriter *gzip.Writer
	if e.compression == "gzip" || e.compression == "GZIP" {
		gzipWriter = gzip.NewWriter(&buf)
		writer = gzipWriter
	}

	// Create OCF writer
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     writer,
		Codec: e.codec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	// Convert and write records
	for _, record := range records {
		if err := ocfWriter.Append([]interface{}{e.convertToAvroMap(record)}); err != nil {
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Format returns the file format.
func (e *AvroEncoder) Format() encoder.FileFormat {
	return encoder.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.compression == "gzip" || e.compression == "GZIP" {
		return ".avro.gz"
	}
	return ".avro"
}
