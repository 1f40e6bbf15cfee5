package suppress

import "fmt"

// Window is a bounded time interval attached to a windowed key. Bounds are
// epoch millis; Start is inclusive and End exclusive for time windows.
type Window interface {
	WindowStart() int64
	WindowEnd() int64
}

// TimeWindow is a fixed interval [Start, End).
type TimeWindow struct {
	Start int64
	End   int64
}

func (w TimeWindow) WindowStart() int64 { return w.Start }
func (w TimeWindow) WindowEnd() int64   { return w.End }

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%d,%d)", w.Start, w.End)
}

// SessionWindow covers the earliest and latest record times observed in a
// session. A single-record session has Start == End.
type SessionWindow struct {
	Start int64
	End   int64
}

func (w SessionWindow) WindowStart() int64 { return w.Start }
func (w SessionWindow) WindowEnd() int64   { return w.End }

func (w SessionWindow) String() string {
	return fmt.Sprintf("[%d,%d]", w.Start, w.End)
}

// WindowedKey is implemented by key types that carry a window. Final-results
// suppression requires it: emission deadlines are computed from the window
// end rather than the record timestamp.
type WindowedKey interface {
	WindowEnd() int64
}

// Windowed pairs an inner key with the window it was aggregated under.
// It is comparable whenever K is, so it can be used directly as a buffer key.
type Windowed[K comparable] struct {
	Key    K
	Window Window
}

// NewWindowed builds a windowed key.
func NewWindowed[K comparable](key K, window Window) Windowed[K] {
	return Windowed[K]{Key: key, Window: window}
}

// WindowEnd returns the end of the key's window.
func (w Windowed[K]) WindowEnd() int64 {
	return w.Window.WindowEnd()
}

func (w Windowed[K]) String() string {
	return fmt.Sprintf("[%v@%d/%d]", w.Key, w.Window.WindowStart(), w.Window.WindowEnd())
}
