package suppress

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/jittakal/kafsuppress/internal/errors"
	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

type captured[K comparable, V any] struct {
	key       K
	change    Change[V]
	timestamp int64
}

func capture[K comparable, V any](into *[]captured[K, V]) EmitFunc[K, V] {
	return func(key K, change Change[V], timestamp int64, rc changefeed.RecordContext) error {
		*into = append(*into, captured[K, V]{key: key, change: change, timestamp: timestamp})
		return nil
	}
}

func recordContext(offset int64) changefeed.RecordContext {
	return changefeed.RecordContext{Topic: "topic", Partition: 0, Offset: offset}
}

func assertExactlyOne[K, V comparable](t *testing.T, forwarded []captured[K, V], key K, change Change[V], timestamp int64) {
	t.Helper()
	if len(forwarded) != 1 {
		t.Fatalf("forwarded %d emissions, want 1", len(forwarded))
	}
	got := forwarded[0]
	if got.key != key {
		t.Errorf("key = %v, want %v", got.key, key)
	}
	if got.timestamp != timestamp {
		t.Errorf("timestamp = %d, want %d", got.timestamp, timestamp)
	}
	assertChange(t, got.change, change)
}

func assertChange[V comparable](t *testing.T, got, want Change[V]) {
	t.Helper()
	if (got.Before == nil) != (want.Before == nil) || (got.Before != nil && *got.Before != *want.Before) {
		t.Errorf("change.Before = %v, want %v", got.Before, want.Before)
	}
	if (got.After == nil) != (want.After == nil) || (got.After != nil && *got.After != *want.After) {
		t.Errorf("change.After = %v, want %v", got.After, want.After)
	}
}

func TestZeroTimeLimitImmediatelyEmits(t *testing.T) {
	var forwarded []captured[string, int64]
	s, err := NewSuppressor(UntilTimeLimit(0, Unbounded()), capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	change := NewChange(Ptr[int64](7), Ptr[int64](14))
	if err := s.Process("hey", change, 5, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertExactlyOne(t, forwarded, "hey", change, 5)
}

func TestWindowedZeroTimeLimitImmediatelyEmits(t *testing.T) {
	var forwarded []captured[Windowed[string], int64]
	s, err := NewSuppressor(UntilTimeLimit(0, Unbounded()), capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	key := NewWindowed("hey", TimeWindow{Start: 0, End: 100})
	change := NewChange(Ptr[int64](7), Ptr[int64](14))
	if err := s.Process(key, change, 5, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertExactlyOne(t, forwarded, key, change, 5)
}

func TestIntermediateSuppressionBuffersAndEmitsLater(t *testing.T) {
	var forwarded []captured[string, int64]
	s, err := NewSuppressor(UntilTimeLimit(time.Millisecond, Unbounded()), capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	change := NewChange[int64](nil, Ptr[int64](1))
	if err := s.Process("hey", change, 0, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(forwarded) != 0 {
		t.Fatalf("forwarded %d emissions before deadline, want 0", len(forwarded))
	}

	// a later event for another key advances stream time past the deadline
	if err := s.Process("tick", NewChange[int64](nil, nil), 1, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// the tick event itself is still within its own delay, so only the
	// flushed entry comes out
	assertExactlyOne(t, forwarded, "hey", change, 0)
}

func TestFinalResultsBuffersAndEmitsAtGraceExpiration(t *testing.T) {
	var forwarded []captured[Windowed[string], int64]
	cfg := UntilWindowCloses(Unbounded()).WithGracePeriod(time.Millisecond)
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	key := NewWindowed("hey", TimeWindow{Start: 99, End: 100})
	change := NewChange(Ptr[int64](7), Ptr[int64](14))
	if err := s.Process(key, change, 99, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(forwarded) != 0 {
		t.Fatalf("forwarded %d emissions, want 0", len(forwarded))
	}

	// stream time is now 100, but the grace period runs until 1ms past the
	// window end, so nothing is emitted yet
	if err := s.Process(NewWindowed("dummyKey1", TimeWindow{Start: 100, End: 101}), change, 100, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(forwarded) != 0 {
		t.Fatalf("forwarded %d emissions one call early, want 0", len(forwarded))
	}

	if err := s.Process(NewWindowed("dummyKey2", TimeWindow{Start: 101, End: 102}), change, 101, recordContext(2)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertExactlyOne(t, forwarded, key, change, 99)
}

func TestFinalResultsZeroGraceStillBuffersUntilWindowEnd(t *testing.T) {
	var forwarded []captured[Windowed[string], int64]
	cfg := UntilWindowCloses(Unbounded()).WithGracePeriod(0)
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	// the record is in the past, but the window end is in the future, so it
	// still has to buffer, even with a zero grace period
	key := NewWindowed("hey", TimeWindow{Start: 0, End: 100})
	change := NewChange(Ptr[int64](5), Ptr[int64](14))
	if err := s.Process(key, change, 5, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(forwarded) != 0 {
		t.Fatalf("forwarded %d emissions before window end, want 0", len(forwarded))
	}

	if err := s.Process(NewWindowed("dummyKey", TimeWindow{Start: 100, End: 200}), change, 100, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// the dummy record itself stays buffered until its own window closes
	assertExactlyOne(t, forwarded, key, change, 5)
}

func TestFinalResultsZeroGraceAtWindowEndImmediatelyEmits(t *testing.T) {
	var forwarded []captured[Windowed[string], int64]
	cfg := UntilWindowCloses(Unbounded()).WithGracePeriod(0)
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	key := NewWindowed("hey", TimeWindow{Start: 0, End: 100})
	change := NewChange(Ptr[int64](7), Ptr[int64](14))
	if err := s.Process(key, change, 100, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertExactlyOne(t, forwarded, key, change, 100)
}

func TestFinalResultsDropsTombstones(t *testing.T) {
	tests := []struct {
		name   string
		window Window
	}{
		{name: "time window", window: TimeWindow{Start: 0, End: 100}},
		{name: "session window", window: SessionWindow{Start: 0, End: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var forwarded []captured[Windowed[string], int64]
			cfg := UntilWindowCloses(Unbounded()).WithGracePeriod(0)
			s, err := NewSuppressor(cfg, capture(&forwarded))
			if err != nil {
				t.Fatalf("NewSuppressor() error = %v", err)
			}

			key := NewWindowed("hey", tt.window)
			if err := s.Process(key, Tombstone(Ptr[int64](5)), 100, recordContext(0)); err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			if len(forwarded) != 0 {
				t.Errorf("forwarded %d emissions for a final-results tombstone, want 0", len(forwarded))
			}
		})
	}
}

func TestTimeLimitSuppressionForwardsTombstones(t *testing.T) {
	t.Run("windowed key", func(t *testing.T) {
		var forwarded []captured[Windowed[string], int64]
		s, err := NewSuppressor(UntilTimeLimit(0, MaxRecords(0)), capture(&forwarded))
		if err != nil {
			t.Fatalf("NewSuppressor() error = %v", err)
		}

		key := NewWindowed("hey", TimeWindow{Start: 0, End: 100})
		change := Tombstone(Ptr[int64](5))
		if err := s.Process(key, change, 100, recordContext(0)); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		assertExactlyOne(t, forwarded, key, change, 100)
	})

	t.Run("plain key", func(t *testing.T) {
		var forwarded []captured[string, int64]
		s, err := NewSuppressor(UntilTimeLimit(0, MaxRecords(0)), capture(&forwarded))
		if err != nil {
			t.Fatalf("NewSuppressor() error = %v", err)
		}

		change := Tombstone(Ptr[int64](5))
		if err := s.Process("hey", change, 100, recordContext(0)); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		assertExactlyOne(t, forwarded, "hey", change, 100)
	})
}

func TestEmitsEarlyWhenOverRecordCapacity(t *testing.T) {
	var forwarded []captured[string, int64]
	cfg := UntilTimeLimit(100*24*time.Hour, MaxRecords(1))
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	change := NewChange[int64](nil, Ptr[int64](5))
	if err := s.Process("hey", change, 100, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := s.Process("dummyKey", change, 101, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertExactlyOne(t, forwarded, "hey", change, 100)
	if stats := s.Stats(); stats.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", stats.RecordCount)
	}
}

func TestEmitsEarlyWhenOverByteCapacity(t *testing.T) {
	var forwarded []captured[string, int64]
	cfg := UntilTimeLimit(100*24*time.Hour, MaxBytes(60))
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	change := NewChange[int64](nil, Ptr[int64](5))
	if err := s.Process("hey", change, 100, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := s.Process("dummyKey", change, 101, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	assertExactlyOne(t, forwarded, "hey", change, 100)
}

func TestShutsDownWhenOverRecordCapacity(t *testing.T) {
	var forwarded []captured[string, int64]
	cfg := UntilTimeLimit(100*24*time.Hour, MaxRecords(1).ShutDownWhenFull())
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	change := NewChange[int64](nil, Ptr[int64](5))
	if err := s.Process("hey", change, 100, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	err = s.Process("dummyKey", change, 100, recordContext(1))
	if err == nil {
		t.Fatal("Process() error = nil, want capacity error")
	}
	if !errors.Is(err, apperrors.ErrBufferFull) {
		t.Errorf("errors.Is(err, ErrBufferFull) = false for %v", err)
	}
	var capErr *apperrors.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("error %v is not a CapacityError", err)
	}
	if capErr.Limit != apperrors.LimitRecords {
		t.Errorf("Limit = %s, want %s", capErr.Limit, apperrors.LimitRecords)
	}

	// the first entry stays buffered and un-emitted, and the offending
	// update was never stored
	if len(forwarded) != 0 {
		t.Errorf("forwarded %d emissions after fatal overflow, want 0", len(forwarded))
	}
	if stats := s.Stats(); stats.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", stats.RecordCount)
	}
}

func TestShutsDownWhenOverByteCapacity(t *testing.T) {
	var forwarded []captured[string, int64]
	cfg := UntilTimeLimit(100*24*time.Hour, MaxBytes(60).ShutDownWhenFull())
	s, err := NewSuppressor(cfg, capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	change := NewChange[int64](nil, Ptr[int64](5))
	if err := s.Process("hey", change, 100, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	err = s.Process("dummyKey", change, 100, recordContext(1))
	if err == nil {
		t.Fatal("Process() error = nil, want capacity error")
	}
	var capErr *apperrors.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("error %v is not a CapacityError", err)
	}
	if capErr.Limit != apperrors.LimitBytes {
		t.Errorf("Limit = %s, want %s", capErr.Limit, apperrors.LimitBytes)
	}
	if len(forwarded) != 0 {
		t.Errorf("forwarded %d emissions after fatal overflow, want 0", len(forwarded))
	}
}

func TestMergeCoalescesPendingUpdates(t *testing.T) {
	var forwarded []captured[string, int64]
	s, err := NewSuppressor(UntilTimeLimit(10*time.Millisecond, Unbounded()), capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	if err := s.Process("hey", NewChange(Ptr[int64](1), Ptr[int64](2)), 0, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := s.Process("hey", NewChange(Ptr[int64](2), Ptr[int64](3)), 1, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(forwarded) != 0 {
		t.Fatalf("forwarded %d emissions while pending, want 0", len(forwarded))
	}

	// advance stream time past the merged entry's deadline
	if err := s.Process("tick", NewChange[int64](nil, Ptr[int64](0)), 20, recordContext(2)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// one coalesced emission: earliest known prior value, latest new value,
	// timestamp of the latest merged update
	if len(forwarded) == 0 {
		t.Fatal("no emissions after deadline")
	}
	got := forwarded[0]
	if got.key != "hey" || got.timestamp != 1 {
		t.Errorf("emission = %v@%d, want hey@1", got.key, got.timestamp)
	}
	assertChange(t, got.change, NewChange(Ptr[int64](1), Ptr[int64](3)))
	for _, e := range forwarded[1:] {
		if e.key == "hey" {
			t.Errorf("key hey emitted more than once")
		}
	}
}

func TestMergeRedeadlinesFromLatestTimestamp(t *testing.T) {
	var forwarded []captured[string, int64]
	s, err := NewSuppressor(UntilTimeLimit(10*time.Millisecond, Unbounded()), capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	if err := s.Process("hey", NewChange[int64](nil, Ptr[int64](1)), 0, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := s.Process("hey", NewChange(Ptr[int64](1), Ptr[int64](2)), 5, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// stream time 12 passes the original deadline (0+10) but not the
	// recomputed one (5+10)
	if err := s.Process("tick", NewChange[int64](nil, Ptr[int64](0)), 12, recordContext(2)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, e := range forwarded {
		if e.key == "hey" {
			t.Fatalf("hey emitted at stream time 12, want it held until 15")
		}
	}

	if err := s.Process("tock", NewChange[int64](nil, Ptr[int64](0)), 15, recordContext(3)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	found := false
	for _, e := range forwarded {
		if e.key == "hey" {
			found = true
			if e.timestamp != 5 {
				t.Errorf("timestamp = %d, want 5", e.timestamp)
			}
		}
	}
	if !found {
		t.Error("hey not emitted at stream time 15")
	}
}

func TestFinalResultsRequiresWindowedKey(t *testing.T) {
	var forwarded []captured[string, int64]
	cfg := UntilWindowCloses(Unbounded()).WithGracePeriod(0)
	if _, err := NewSuppressor(cfg, capture(&forwarded)); err == nil {
		t.Error("NewSuppressor() accepted final results for a non-windowed key type")
	}
}

func TestFinalResultsRequiresGracePeriod(t *testing.T) {
	var forwarded []captured[Windowed[string], int64]
	if _, err := NewSuppressor(UntilWindowCloses(Unbounded()), capture(&forwarded)); err == nil {
		t.Error("NewSuppressor() accepted final results without a grace period")
	}
}

func TestStreamTimeNeverRegresses(t *testing.T) {
	var forwarded []captured[string, int64]
	s, err := NewSuppressor(UntilTimeLimit(5*time.Millisecond, Unbounded()), capture(&forwarded))
	if err != nil {
		t.Fatalf("NewSuppressor() error = %v", err)
	}

	if err := s.Process("a", NewChange[int64](nil, Ptr[int64](1)), 100, recordContext(0)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// out-of-order arrival: its own deadline (50+5) is already past stream
	// time 100, so it is emitted immediately with its own timestamp
	late := NewChange[int64](nil, Ptr[int64](2))
	if err := s.Process("b", late, 50, recordContext(1)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	assertExactlyOne(t, forwarded, "b", late, 50)

	if got := s.Stats().StreamTime; got != 100 {
		t.Errorf("StreamTime = %d, want 100", got)
	}
}
