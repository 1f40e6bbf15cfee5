// Package validator provides changefeed record validation.
package validator

import (
	"fmt"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

// ChangeRecordValidator checks raw changefeed records before decoding.
// A record that fails here is skipped and its offset committed so it
// cannot wedge the partition.
type ChangeRecordValidator struct {
	maxKeyBytes   int
	maxValueBytes int
}

// Option configures a ChangeRecordValidator.
type Option func(*ChangeRecordValidator)

// WithMaxKeyBytes rejects records whose key exceeds the given size.
func WithMaxKeyBytes(n int) Option {
	return func(v *ChangeRecordValidator) { v.maxKeyBytes = n }
}

// WithMaxValueBytes rejects records whose value exceeds the given size.
func WithMaxValueBytes(n int) Option {
	return func(v *ChangeRecordValidator) { v.maxValueBytes = n }
}

// NewChangeRecordValidator creates a new changefeed record validator.
func NewChangeRecordValidator(opts ...Option) *ChangeRecordValidator {
	v := &ChangeRecordValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate validates a raw change record.
func (v *ChangeRecordValidator) Validate(r *changefeed.ChangeRecord) error {
	partitionID := r.Context.PartitionID()

	if len(r.Key) == 0 {
		return &errors.ValidationError{
			PartitionID: partitionID,
			Offset:      r.Context.Offset,
			Field:       "key",
			Reason:      "required field is missing",
		}
	}

	if r.Timestamp < 0 {
		return &errors.ValidationError{
			PartitionID: partitionID,
			Offset:      r.Context.Offset,
			Field:       "timestamp",
			Reason:      fmt.Sprintf("negative event time: %d", r.Timestamp),
		}
	}

	if v.maxKeyBytes > 0 && len(r.Key) > v.maxKeyBytes {
		return &errors.ValidationError{
			PartitionID: partitionID,
			Offset:      r.Context.Offset,
			Field:       "key",
			Reason:      fmt.Sprintf("key size %d exceeds limit %d", len(r.Key), v.maxKeyBytes),
		}
	}

	if v.maxValueBytes > 0 && len(r.Value) > v.maxValueBytes {
		return &errors.ValidationError{
			PartitionID: partitionID,
			Offset:      r.Context.Offset,
			Field:       "value",
			Reason:      fmt.Sprintf("value size %d exceeds limit %d", len(r.Value), v.maxValueBytes),
		}
	}

	return nil
}
