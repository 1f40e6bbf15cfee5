// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

// Sentinel errors for common conditions.
var (
	ErrBufferFull     = errors.New("suppression buffer exceeded its max capacity")
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrProducerClosed = errors.New("producer is closed")
	ErrInvalidRecord  = errors.New("invalid change record")
	ErrInvalidConfig  = errors.New("invalid suppression config")
	ErrStageClosed    = errors.New("suppression stage is closed")
	ErrArchiverClosed = errors.New("emission archiver is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// CapacityLimit names the buffer ceiling that was breached.
type CapacityLimit string

const (
	LimitRecords CapacityLimit = "records"
	LimitBytes   CapacityLimit = "bytes"
)

// CapacityError is the fatal failure raised when a shut-down-when-full
// buffer would exceed its configured ceiling. The update that triggered the
// overflow is never stored.
type CapacityError struct {
	Limit  CapacityLimit
	Max    int64
	Actual int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %s limit %d, would reach %d", ErrBufferFull, e.Limit, e.Max, e.Actual)
}

func (e *CapacityError) Unwrap() error {
	return ErrBufferFull
}

// ProcessingError represents an error while processing one changefeed record.
type ProcessingError struct {
	PartitionID changefeed.PartitionID
	Offset      int64
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ValidationError represents a changefeed record validation failure.
type ValidationError struct {
	PartitionID changefeed.PartitionID
	Offset      int64
	Field       string
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: partition=%s offset=%d field=%s: %s",
		e.PartitionID, e.Offset, e.Field, e.Reason)
}

// CodecError represents an encode or decode failure at the wire-format
// boundary.
type CodecError struct {
	Codec     string
	Operation string
	Err       error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec error: codec=%s operation=%s: %v",
		e.Codec, e.Operation, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// StorageError represents an archive storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
// A capacity breach is never retryable: it is expected to terminate the
// hosting stage.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var capacity *CapacityError
	if errors.As(err, &capacity) {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Write and upload operations are generally retryable
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}
