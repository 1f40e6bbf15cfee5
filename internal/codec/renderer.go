package codec

import (
	"fmt"
	"strconv"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/linkedin/goavro/v2"
)

// ValueFormat selects how raw change values are rendered for archival.
type ValueFormat string

const (
	ValueFormatString ValueFormat = "string"
	ValueFormatInt64  ValueFormat = "int64"
	ValueFormatAvro   ValueFormat = "avro"
)

// ValueRenderer turns raw changefeed value bytes into a textual form for
// archived emissions.
type ValueRenderer func(data []byte) (string, error)

// NewValueRenderer creates a renderer for the given format. The Avro format
// requires the writer schema of the upstream values and renders them as
// textual JSON.
func NewValueRenderer(format ValueFormat, avroSchema string) (ValueRenderer, error) {
	switch format {
	case ValueFormatString:
		return func(data []byte) (string, error) {
			return string(data), nil
		}, nil

	case ValueFormatInt64:
		return func(data []byte) (string, error) {
			if len(data) != 8 {
				return "", &errors.CodecError{
					Codec:     "int64_value",
					Operation: "render",
					Err:       fmt.Errorf("expected 8 bytes, got %d", len(data)),
				}
			}
			var v int64
			for _, b := range data {
				v = v<<8 | int64(b)
			}
			return strconv.FormatInt(v, 10), nil
		}, nil

	case ValueFormatAvro:
		avroCodec, err := goavro.NewCodec(avroSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to create avro codec: %w", err)
		}
		return func(data []byte) (string, error) {
			native, _, err := avroCodec.NativeFromBinary(data)
			if err != nil {
				return "", &errors.CodecError{Codec: "avro_value", Operation: "render", Err: err}
			}
			textual, err := avroCodec.TextualFromNative(nil, native)
			if err != nil {
				return "", &errors.CodecError{Codec: "avro_value", Operation: "render", Err: err}
			}
			return string(textual), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported value format %q", errors.ErrInvalidConfig, format)
	}
}
