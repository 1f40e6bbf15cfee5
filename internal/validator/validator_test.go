package validator

import (
	stderrors "errors"
	"testing"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

func validRecord() *changefeed.ChangeRecord {
	return &changefeed.ChangeRecord{
		Key:       []byte("order-42"),
		Value:     append([]byte(`{"total": 100}`), 1),
		Timestamp: 1700000000000,
		Context: changefeed.RecordContext{
			Topic:     "orders-agg",
			Partition: 0,
			Offset:    100,
		},
	}
}

func TestNewChangeRecordValidator(t *testing.T) {
	validator := NewChangeRecordValidator()
	if validator == nil {
		t.Fatal("expected non-nil validator")
	}
}

func TestChangeRecordValidator_ValidateSuccess(t *testing.T) {
	validator := NewChangeRecordValidator()

	tests := []struct {
		name   string
		mutate func(*changefeed.ChangeRecord)
	}{
		{
			name:   "valid record",
			mutate: func(r *changefeed.ChangeRecord) {},
		},
		{
			name: "tombstone with nil value",
			mutate: func(r *changefeed.ChangeRecord) {
				r.Value = nil
			},
		},
		{
			name: "zero timestamp",
			mutate: func(r *changefeed.ChangeRecord) {
				r.Timestamp = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord()
			tt.mutate(record)

			if err := validator.Validate(record); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestChangeRecordValidator_ValidateErrors(t *testing.T) {
	validator := NewChangeRecordValidator(
		WithMaxKeyBytes(16),
		WithMaxValueBytes(64),
	)

	tests := []struct {
		name      string
		mutate    func(*changefeed.ChangeRecord)
		wantField string
	}{
		{
			name: "missing key",
			mutate: func(r *changefeed.ChangeRecord) {
				r.Key = nil
			},
			wantField: "key",
		},
		{
			name: "negative timestamp",
			mutate: func(r *changefeed.ChangeRecord) {
				r.Timestamp = -1
			},
			wantField: "timestamp",
		},
		{
			name: "oversized key",
			mutate: func(r *changefeed.ChangeRecord) {
				r.Key = make([]byte, 17)
			},
			wantField: "key",
		},
		{
			name: "oversized value",
			mutate: func(r *changefeed.ChangeRecord) {
				r.Value = make([]byte, 65)
			},
			wantField: "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord()
			tt.mutate(record)

			err := validator.Validate(record)
			if err == nil {
				t.Fatal("Validate() error = nil, want validation error")
			}

			var validationErr *errors.ValidationError
			if !stderrors.As(err, &validationErr) {
				t.Fatalf("error type = %T, want *errors.ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", validationErr.Field, tt.wantField)
			}
			if validationErr.PartitionID.Topic != "orders-agg" {
				t.Errorf("PartitionID.Topic = %s, want orders-agg", validationErr.PartitionID.Topic)
			}
		})
	}
}

func TestChangeRecordValidator_NoLimitsByDefault(t *testing.T) {
	validator := NewChangeRecordValidator()

	record := validRecord()
	record.Key = make([]byte, 1<<20)
	record.Value = make([]byte, 1<<20)

	if err := validator.Validate(record); err != nil {
		t.Errorf("Validate() error = %v, want nil without size limits", err)
	}
}
