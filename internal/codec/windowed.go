package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/suppress"
)

// KeyCodec decodes raw changefeed keys into buffer keys and encodes them
// back for publishing.
type KeyCodec interface {
	// Decode parses a raw key into a windowed buffer key. Plain codecs wrap
	// the key in a degenerate window.
	Decode(data []byte) (suppress.Windowed[string], error)

	// Encode serializes a buffer key back to its wire form.
	Encode(key suppress.Windowed[string]) []byte
}

// KeyFormat selects a key codec.
type KeyFormat string

const (
	KeyFormatPlain          KeyFormat = "plain"
	KeyFormatTimeWindowed   KeyFormat = "time_windowed"
	KeyFormatSessionWindows KeyFormat = "session_windowed"
)

// NewKeyCodec creates a key codec for the given format. windowSize is the
// fixed window length in millis, required only for time-windowed keys.
func NewKeyCodec(format KeyFormat, windowSize int64) (KeyCodec, error) {
	switch format {
	case KeyFormatPlain:
		return plainKeyCodec{}, nil
	case KeyFormatTimeWindowed:
		if windowSize <= 0 {
			return nil, fmt.Errorf("%w: time-windowed keys require a positive window size", errors.ErrInvalidConfig)
		}
		return timeWindowedKeyCodec{windowSize: windowSize}, nil
	case KeyFormatSessionWindows:
		return sessionKeyCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key format %q", errors.ErrInvalidConfig, format)
	}
}

// plainKeyCodec passes key bytes through unchanged, wrapped in a zero
// window. Plain keys cannot be used with final-results suppression.
type plainKeyCodec struct{}

func (plainKeyCodec) Decode(data []byte) (suppress.Windowed[string], error) {
	return suppress.NewWindowed(string(data), suppress.TimeWindow{}), nil
}

func (plainKeyCodec) Encode(key suppress.Windowed[string]) []byte {
	return []byte(key.Key)
}

// timeWindowedKeyCodec reads keys laid out as the inner key bytes followed
// by the 8-byte big-endian window start. The window end is derived from the
// fixed window size.
type timeWindowedKeyCodec struct {
	windowSize int64
}

func (c timeWindowedKeyCodec) Decode(data []byte) (suppress.Windowed[string], error) {
	if len(data) < 8 {
		return suppress.Windowed[string]{}, &errors.CodecError{
			Codec:     "time_windowed_key",
			Operation: "decode",
			Err:       fmt.Errorf("key too short: %d bytes", len(data)),
		}
	}
	split := len(data) - 8
	start := int64(binary.BigEndian.Uint64(data[split:]))
	window := suppress.TimeWindow{Start: start, End: start + c.windowSize}
	return suppress.NewWindowed(string(data[:split]), window), nil
}

func (c timeWindowedKeyCodec) Encode(key suppress.Windowed[string]) []byte {
	out := make([]byte, len(key.Key)+8)
	copy(out, key.Key)
	binary.BigEndian.PutUint64(out[len(key.Key):], uint64(key.Window.WindowStart()))
	return out
}

// sessionKeyCodec reads keys laid out as the inner key bytes followed by the
// 8-byte big-endian window end and then the 8-byte big-endian window start.
type sessionKeyCodec struct{}

func (sessionKeyCodec) Decode(data []byte) (suppress.Windowed[string], error) {
	if len(data) < 16 {
		return suppress.Windowed[string]{}, &errors.CodecError{
			Codec:     "session_key",
			Operation: "decode",
			Err:       fmt.Errorf("key too short: %d bytes", len(data)),
		}
	}
	split := len(data) - 16
	end := int64(binary.BigEndian.Uint64(data[split : split+8]))
	start := int64(binary.BigEndian.Uint64(data[split+8:]))
	window := suppress.SessionWindow{Start: start, End: end}
	return suppress.NewWindowed(string(data[:split]), window), nil
}

func (sessionKeyCodec) Encode(key suppress.Windowed[string]) []byte {
	out := make([]byte, len(key.Key)+16)
	copy(out, key.Key)
	binary.BigEndian.PutUint64(out[len(key.Key):], uint64(key.Window.WindowEnd()))
	binary.BigEndian.PutUint64(out[len(key.Key)+8:], uint64(key.Window.WindowStart()))
	return out
}
