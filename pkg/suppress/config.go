package suppress

import (
	"fmt"
	"time"
)

// unlimited marks a capacity dimension with no configured ceiling.
const unlimited = int64(-1)

// BufferConfig describes the capacity ceiling of a suppression buffer and
// the behavior when the ceiling is hit. The zero value is not valid; use the
// constructors. Configs are pure values and safe to share.
type BufferConfig struct {
	maxRecords       int64
	maxBytes         int64
	shutDownWhenFull bool
}

// Unbounded returns a buffer config with no capacity ceiling.
func Unbounded() BufferConfig {
	return BufferConfig{maxRecords: unlimited, maxBytes: unlimited}
}

// MaxRecords returns a buffer config limited to n buffered records.
func MaxRecords(n int64) BufferConfig {
	return BufferConfig{maxRecords: n, maxBytes: unlimited}
}

// MaxBytes returns a buffer config limited to n estimated bytes.
func MaxBytes(n int64) BufferConfig {
	return BufferConfig{maxRecords: unlimited, maxBytes: n}
}

// WithMaxRecords adds a record ceiling to the config.
func (c BufferConfig) WithMaxRecords(n int64) BufferConfig {
	c.maxRecords = n
	return c
}

// WithMaxBytes adds a byte ceiling to the config.
func (c BufferConfig) WithMaxBytes(n int64) BufferConfig {
	c.maxBytes = n
	return c
}

// ShutDownWhenFull makes a capacity breach fatal: the offending update is
// rejected and processing must stop.
func (c BufferConfig) ShutDownWhenFull() BufferConfig {
	c.shutDownWhenFull = true
	return c
}

// EmitEarlyWhenFull makes a capacity breach evict and emit the oldest
// buffered entries until the buffer fits again. This is the default.
func (c BufferConfig) EmitEarlyWhenFull() BufferConfig {
	c.shutDownWhenFull = false
	return c
}

// exceeded reports whether the given ledger totals breach the ceiling.
func (c BufferConfig) exceeded(records int, bytes int64) bool {
	if c.maxRecords != unlimited && int64(records) > c.maxRecords {
		return true
	}
	return c.maxBytes != unlimited && bytes > c.maxBytes
}

func (c BufferConfig) validate() error {
	if c.maxRecords != unlimited && c.maxRecords < 0 {
		return fmt.Errorf("max records must not be negative: %d", c.maxRecords)
	}
	if c.maxBytes != unlimited && c.maxBytes < 0 {
		return fmt.Errorf("max bytes must not be negative: %d", c.maxBytes)
	}
	return nil
}

// suppressionKind distinguishes the two deadline rules.
type suppressionKind int

const (
	kindTimeLimit suppressionKind = iota
	kindFinalResults
)

// Suppressed is an immutable description of a suppression policy: how
// emission deadlines are computed and how the buffer behaves at capacity.
//
// UntilWindowCloses produces an intermediate state that is invalid until a
// grace period is supplied with WithGracePeriod; NewSuppressor rejects the
// unconfigured form.
type Suppressed struct {
	kind      suppressionKind
	timeLimit time.Duration
	grace     time.Duration
	graceSet  bool
	buffer    BufferConfig
}

// UntilTimeLimit suppresses each update for a fixed delay after its own
// timestamp. A zero delay emits every update immediately, bypassing the
// buffer entirely.
func UntilTimeLimit(timeLimit time.Duration, buffer BufferConfig) Suppressed {
	return Suppressed{kind: kindTimeLimit, timeLimit: timeLimit, buffer: buffer}
}

// UntilWindowCloses suppresses all updates for a window until the window has
// closed, emitting only the final result. The returned config must be
// completed with WithGracePeriod before use; a grace of zero still buffers
// until stream time reaches the window end.
func UntilWindowCloses(buffer BufferConfig) Suppressed {
	return Suppressed{kind: kindFinalResults, buffer: buffer}
}

// WithGracePeriod completes a final-results config with the grace allowed
// past the window end before results are considered final.
func (s Suppressed) WithGracePeriod(grace time.Duration) Suppressed {
	s.grace = grace
	s.graceSet = true
	return s
}

// IsFinalResults reports whether the policy emits only final window results.
func (s Suppressed) IsFinalResults() bool {
	return s.kind == kindFinalResults
}

// BufferConfig returns the capacity policy.
func (s Suppressed) BufferConfig() BufferConfig {
	return s.buffer
}

func (s Suppressed) validate() error {
	if s.kind == kindFinalResults && !s.graceSet {
		return fmt.Errorf("final-results suppression requires a grace period: complete the config with WithGracePeriod")
	}
	if s.kind == kindFinalResults && s.grace < 0 {
		return fmt.Errorf("grace period must not be negative: %v", s.grace)
	}
	if s.kind == kindTimeLimit && s.timeLimit < 0 {
		return fmt.Errorf("time limit must not be negative: %v", s.timeLimit)
	}
	return s.buffer.validate()
}
