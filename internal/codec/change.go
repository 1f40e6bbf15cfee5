// Package codec implements the wire formats crossing the suppression stage
// boundary: the single-sided change envelope consumed from the upstream
// changefeed, and the windowed key encodings used by final-results mode.
package codec

import (
	"fmt"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/suppress"
)

// The change envelope carries exactly one side of a transition: the value
// bytes followed by a single presence byte marking which side is set.
const (
	flagOldValue byte = 0
	flagNewValue byte = 1
)

// ChangeCodec encodes and decodes the single-sided change envelope.
type ChangeCodec struct{}

// NewChangeCodec creates a change envelope codec.
func NewChangeCodec() *ChangeCodec {
	return &ChangeCodec{}
}

// Encode serializes a change. It is the producing side of the envelope, for
// upstream aggregators (and test fixtures) writing records the stage
// consumes; the stage itself publishes an emitted change as raw new-value
// bytes, not re-wrapped in this envelope. Exactly one side must be present:
// the envelope cannot carry a two-sided transition, so both-present and
// both-absent changes are rejected.
func (c *ChangeCodec) Encode(change suppress.Change[[]byte]) ([]byte, error) {
	newSet := change.After != nil
	oldSet := change.Before != nil

	if newSet == oldSet {
		return nil, &errors.CodecError{
			Codec:     "change",
			Operation: "encode",
			Err:       fmt.Errorf("envelope requires exactly one side, got old=%v new=%v", oldSet, newSet),
		}
	}

	if newSet {
		return append(append([]byte{}, *change.After...), flagNewValue), nil
	}
	return append(append([]byte{}, *change.Before...), flagOldValue), nil
}

// Decode parses a change envelope. A nil or empty input decodes to a
// tombstone with no prior value, matching a raw deletion record.
func (c *ChangeCodec) Decode(data []byte) (suppress.Change[[]byte], error) {
	if len(data) == 0 {
		return suppress.Change[[]byte]{}, nil
	}

	value := append([]byte{}, data[:len(data)-1]...)
	switch flag := data[len(data)-1]; flag {
	case flagNewValue:
		return suppress.Change[[]byte]{After: &value}, nil
	case flagOldValue:
		return suppress.Change[[]byte]{Before: &value}, nil
	default:
		return suppress.Change[[]byte]{}, &errors.CodecError{
			Codec:     "change",
			Operation: "decode",
			Err:       fmt.Errorf("unknown presence flag %d", flag),
		}
	}
}
