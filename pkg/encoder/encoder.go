// Package encoder defines interfaces for encoding emitted records to
// archive file formats.
package encoder

import (
	"time"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

// FileFormat represents the archive file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// FileStats describes an encoded archive file or a pending batch.
type FileStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// Encoder encodes emitted records to a specific file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []changefeed.EmittedRecord) (*FileStats, error)

	// Format returns the file format this encoder produces.
	Format() FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
