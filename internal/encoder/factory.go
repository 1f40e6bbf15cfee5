// Package encoder implements encoder factory for creating file format encoders.
package encoder

import (
	"fmt"

	"github.com/jittakal/kafsuppress/pkg/encoder"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      encoder.FileFormat
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format encoder.FileFormat, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case encoder.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case encoder.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []encoder.FileFormat {
	return []encoder.FileFormat{
		encoder.FormatParquet,
		encoder.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format encoder.FileFormat) []string {
	switch format {
	case encoder.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case encoder.FormatAvro:
		return []string{"uncompressed", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format encoder.FileFormat) string {
	switch format {
	case encoder.FormatParquet:
		return "snappy"
	case encoder.FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}
