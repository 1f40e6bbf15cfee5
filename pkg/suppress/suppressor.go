package suppress

import (
	"log/slog"
	"math"

	"github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

// EmitFunc is the downstream sink for emitted updates. Emissions are
// delivered in order; an error aborts the Process call that produced them.
type EmitFunc[K comparable, V any] func(key K, change Change[V], timestamp int64, rc changefeed.RecordContext) error

// EmitReason classifies why an update was forwarded.
type EmitReason string

const (
	// EmitImmediate marks an update whose deadline had already passed when
	// it arrived; it was never buffered.
	EmitImmediate EmitReason = "immediate"
	// EmitDue marks a buffered entry flushed because stream time reached
	// its deadline.
	EmitDue EmitReason = "due"
	// EmitEarly marks a buffered entry force-evicted to bring the buffer
	// back under capacity.
	EmitEarly EmitReason = "early"
)

// Observer receives engine lifecycle notifications, typically to drive
// metrics. All methods are invoked synchronously from Process.
type Observer interface {
	EntryBuffered(records int, bytes int64)
	EntryEmitted(reason EmitReason)
	TombstoneDropped()
}

// Option configures a Suppressor.
type Option[K comparable, V any] func(*Suppressor[K, V])

// WithSizeEstimator replaces the default byte-size estimator used by the
// buffer's capacity ledger.
func WithSizeEstimator[K comparable, V any](estimate SizeEstimator[K, V]) Option[K, V] {
	return func(s *Suppressor[K, V]) { s.estimate = estimate }
}

// WithLogger attaches a structured logger.
func WithLogger[K comparable, V any](logger *slog.Logger) Option[K, V] {
	return func(s *Suppressor[K, V]) { s.logger = logger }
}

// WithObserver attaches an engine observer.
func WithObserver[K comparable, V any](observer Observer) Option[K, V] {
	return func(s *Suppressor[K, V]) { s.observer = observer }
}

// Suppressor is the suppression decision engine for one changefeed
// partition. It consumes one update at a time, advances stream time, flushes
// due entries, and decides per update whether to emit immediately, buffer,
// merge, or drop.
//
// A Suppressor is single-threaded: it must only be driven from one
// goroutine, and it exclusively owns its buffer.
type Suppressor[K comparable, V any] struct {
	cfg        Suppressed
	buf        *TimeOrderedBuffer[K, V]
	emit       EmitFunc[K, V]
	estimate   SizeEstimator[K, V]
	logger     *slog.Logger
	observer   Observer
	streamTime int64
	delayMs    int64
	graceMs    int64
}

// NewSuppressor creates a suppression engine for the given policy and sink.
// It fails if the config is incomplete (final results without a grace
// period) or if final-results suppression is requested for a key type that
// does not expose a window end.
func NewSuppressor[K comparable, V any](cfg Suppressed, emit EmitFunc[K, V], opts ...Option[K, V]) (*Suppressor[K, V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if emit == nil {
		return nil, errors.ErrInvalidConfig
	}
	if cfg.IsFinalResults() {
		var zero K
		if _, ok := any(zero).(WindowedKey); !ok {
			return nil, errors.ErrInvalidConfig
		}
	}

	s := &Suppressor[K, V]{
		cfg:        cfg,
		emit:       emit,
		streamTime: math.MinInt64,
		delayMs:    cfg.timeLimit.Milliseconds(),
		graceMs:    cfg.grace.Milliseconds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.buf = NewTimeOrderedBuffer(s.estimate)
	return s, nil
}

// Process consumes one update atomically: it advances stream time, flushes
// every buffered entry whose deadline has passed, then either emits the
// update immediately (deadline already due), buffers it, or fails fatally on
// a capacity breach under the shut-down-when-full policy. Emissions are
// delivered to the sink in order before Process returns.
func (s *Suppressor[K, V]) Process(key K, change Change[V], timestamp int64, rc changefeed.RecordContext) error {
	if timestamp > s.streamTime {
		s.streamTime = timestamp
	}

	for e := range s.buf.PopDue(s.streamTime) {
		if err := s.forward(e.Key, e.Change, e.Timestamp, e.Context, EmitDue); err != nil {
			return err
		}
	}

	deadline := s.deadline(key, timestamp)
	if deadline <= s.streamTime {
		return s.forward(key, change, timestamp, rc, EmitImmediate)
	}

	if s.cfg.buffer.shutDownWhenFull {
		if err := s.checkCapacity(key, change, rc); err != nil {
			return err
		}
	}

	s.buf.Upsert(key, change, timestamp, deadline, rc)
	if s.observer != nil {
		records, bytes := s.buf.Sizes()
		s.observer.EntryBuffered(records, bytes)
	}

	if !s.cfg.buffer.shutDownWhenFull {
		return s.evictUntilWithinCapacity()
	}
	return nil
}

// Stats returns a snapshot of the buffer ledger and stream time.
func (s *Suppressor[K, V]) Stats() changefeed.BufferStats {
	records, bytes := s.buf.Sizes()
	return changefeed.BufferStats{
		RecordCount: records,
		SizeBytes:   bytes,
		StreamTime:  s.streamTime,
	}
}

// deadline computes the stream time at which an update becomes eligible for
// emission under the active policy.
func (s *Suppressor[K, V]) deadline(key K, timestamp int64) int64 {
	if s.cfg.IsFinalResults() {
		return any(key).(WindowedKey).WindowEnd() + s.graceMs
	}
	return timestamp + s.delayMs
}

// forward applies the tombstone-drop rule and otherwise hands the update to
// the sink. Under final-results suppression a tombstone retracts a value
// that was never forwarded, so it carries no information downstream; under
// every other policy the retraction must go through.
func (s *Suppressor[K, V]) forward(key K, change Change[V], timestamp int64, rc changefeed.RecordContext, reason EmitReason) error {
	if s.cfg.IsFinalResults() && change.IsTombstone() {
		if s.observer != nil {
			s.observer.TombstoneDropped()
		}
		s.logger.Debug("dropped tombstone", "key", key, "timestamp", timestamp)
		return nil
	}
	if err := s.emit(key, change, timestamp, rc); err != nil {
		return err
	}
	if s.observer != nil {
		s.observer.EntryEmitted(reason)
	}
	return nil
}

// checkCapacity rejects an update whose upsert would push the ledger past
// the ceiling, before the buffer is touched.
func (s *Suppressor[K, V]) checkCapacity(key K, change Change[V], rc changefeed.RecordContext) error {
	records, bytes := s.buf.ProjectedSizes(key, change, rc)
	cfg := s.cfg.buffer
	if cfg.maxRecords != unlimited && int64(records) > cfg.maxRecords {
		return &errors.CapacityError{Limit: errors.LimitRecords, Max: cfg.maxRecords, Actual: int64(records)}
	}
	if cfg.maxBytes != unlimited && bytes > cfg.maxBytes {
		return &errors.CapacityError{Limit: errors.LimitBytes, Max: cfg.maxBytes, Actual: bytes}
	}
	return nil
}

// evictUntilWithinCapacity force-emits the oldest entries until the ledger
// fits the ceiling again. This can evict the entry that was just inserted if
// it happens to be the oldest.
func (s *Suppressor[K, V]) evictUntilWithinCapacity() error {
	for {
		records, bytes := s.buf.Sizes()
		if !s.cfg.buffer.exceeded(records, bytes) {
			return nil
		}
		e, ok := s.buf.EvictOldest()
		if !ok {
			return nil
		}
		s.logger.Debug("evicting entry early to stay under capacity",
			"key", e.Key,
			"timestamp", e.Timestamp,
			"deadline", e.Deadline,
		)
		if err := s.forward(e.Key, e.Change, e.Timestamp, e.Context, EmitEarly); err != nil {
			return err
		}
	}
}
