package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
	"github.com/jittakal/kafsuppress/pkg/encoder"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	filesWritten       int
	fileSizes          []float64
	writeDurations     []float64
	archiveErrors      int
	lastFileStatus     string
	lastTopic          string
	lastPartition      int32
	lastFormat         string
	lastErrorBackend   string
	lastErrorOperation string
}

func (m *mockMetricsCollector) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.filesWritten++
	m.lastTopic = topic
	m.lastPartition = partition
	m.lastFormat = format
	m.lastFileStatus = status
}

func (m *mockMetricsCollector) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.fileSizes = append(m.fileSizes, size)
}

func (m *mockMetricsCollector) ObserveFileWriteDuration(backend string, format string, duration float64) {
	m.writeDurations = append(m.writeDurations, duration)
}

func (m *mockMetricsCollector) IncArchiveErrors(backend string, operation string) {
	m.archiveErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

func emittedRecord(offset int64) changefeed.EmittedRecord {
	return changefeed.EmittedRecord{
		Key:       []byte("order-42"),
		Value:     []byte(`{"total": 100}`),
		Timestamp: 1700000000000 + offset,
		Context: changefeed.RecordContext{
			Topic:     "test-topic",
			Partition: 0,
			Offset:    offset,
		},
		EmittedAt: time.Now().UTC(),
	}
}

func TestNewFileWriter(t *testing.T) {
	tests := []struct {
		name        string
		config      FileConfig
		format      encoder.FileFormat
		compression string
		wantErr     bool
	}{
		{
			name: "valid parquet config",
			config: FileConfig{
				BasePath: filepath.Join(os.TempDir(), "test-file-writer-parquet"),
			},
			format:      encoder.FormatParquet,
			compression: "snappy",
			wantErr:     false,
		},
		{
			name: "valid avro config",
			config: FileConfig{
				BasePath: filepath.Join(os.TempDir(), "test-file-writer-avro"),
			},
			format:      encoder.FormatAvro,
			compression: "snappy",
			wantErr:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer os.RemoveAll(tt.config.BasePath)

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			metrics := &mockMetricsCollector{}

			writer, err := NewFileWriter(tt.config, tt.format, tt.compression, logger, metrics)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewFileWriter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if writer == nil {
					t.Fatal("expected non-nil writer")
				}
				if writer.basePath != tt.config.BasePath {
					t.Errorf("basePath = %v, want %v", writer.basePath, tt.config.BasePath)
				}
			}
		})
	}
}

func TestFileWriter_Write(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-writer-write")
	defer os.RemoveAll(basePath)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	metrics := &mockMetricsCollector{}

	writer, err := NewFileWriter(
		FileConfig{BasePath: basePath},
		encoder.FormatParquet,
		"snappy",
		logger,
		metrics,
	)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	records := []changefeed.EmittedRecord{
		emittedRecord(100),
		emittedRecord(101),
	}

	tests := []struct {
		name    string
		records []changefeed.EmittedRecord
		path    string
		format  encoder.FileFormat
		wantErr bool
	}{
		{
			name:    "successful write",
			records: records,
			path:    "test-topic/dt=2024-01-01/pid=0/",
			format:  encoder.FormatParquet,
			wantErr: false,
		},
		{
			name:    "empty records",
			records: []changefeed.EmittedRecord{},
			path:    "test-topic/empty",
			format:  encoder.FormatParquet,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			size, err := writer.Write(ctx, tt.records, tt.path, tt.format)

			if (err != nil) != tt.wantErr {
				t.Errorf("Write() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if size <= 0 {
					t.Errorf("Write() size = %v, want > 0", size)
				}

				// Verify directory exists (file has timestamped name)
				dirPath := filepath.Join(basePath, tt.path)
				if _, err := os.Stat(dirPath); os.IsNotExist(err) {
					t.Errorf("expected directory at %s", dirPath)
				}

				// Verify at least one file exists in the directory
				entries, err := os.ReadDir(dirPath)
				if err != nil || len(entries) == 0 {
					t.Errorf("expected files in directory %s", dirPath)
				}

				// Verify metrics were updated
				if metrics.filesWritten != 1 {
					t.Errorf("filesWritten = %d, want 1", metrics.filesWritten)
				}
				if metrics.lastFileStatus != "success" {
					t.Errorf("lastFileStatus = %s, want success", metrics.lastFileStatus)
				}
				if len(metrics.fileSizes) != 1 {
					t.Errorf("len(fileSizes) = %d, want 1", len(metrics.fileSizes))
				}
			}
		})
	}
}

func TestFileWriter_Close(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-writer-close")
	defer os.RemoveAll(basePath)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	metrics := &mockMetricsCollector{}

	writer, err := NewFileWriter(
		FileConfig{BasePath: basePath},
		encoder.FormatParquet,
		"snappy",
		logger,
		metrics,
	)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	err = writer.Close()
	if err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
