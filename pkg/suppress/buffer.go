package suppress

import (
	"container/heap"
	"fmt"
	"iter"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

// SizeEstimator reports the estimated in-memory footprint of one buffered
// entry: key plus change payload plus origin metadata.
type SizeEstimator[K comparable, V any] func(key K, change Change[V], rc changefeed.RecordContext) int64

// DefaultSizeEstimator estimates sizes for common key and value shapes
// (string, []byte, integers, fmt.Stringer). Anything else falls back to the
// length of its printed form; callers with exotic types should supply their
// own estimator.
func DefaultSizeEstimator[K comparable, V any]() SizeEstimator[K, V] {
	return func(key K, change Change[V], rc changefeed.RecordContext) int64 {
		size := valueFootprint(any(key)) + changefeed.ContextSize(rc)
		if change.Before != nil {
			size += valueFootprint(any(*change.Before))
		}
		if change.After != nil {
			size += valueFootprint(any(*change.After))
		}
		return size
	}
}

func valueFootprint(v any) int64 {
	switch t := v.(type) {
	case string:
		return int64(len(t))
	case []byte:
		return int64(len(t))
	case int, int32, int64, uint32, uint64, float32, float64:
		return 8
	case fmt.Stringer:
		return int64(len(t.String()))
	default:
		return int64(len(fmt.Sprintf("%v", t)))
	}
}

// BufferedEntry is the buffer's stored unit for one key, as surfaced to the
// engine on eviction or due-flush.
type BufferedEntry[K comparable, V any] struct {
	Key       K
	Change    Change[V]
	Timestamp int64 // event time of the latest merged update
	Deadline  int64 // stream time at which the entry becomes eligible
	Context   changefeed.RecordContext
}

type bufferEntry[K comparable, V any] struct {
	key       K
	change    Change[V]
	timestamp int64
	deadline  int64
	seq       uint64
	size      int64
	rc        changefeed.RecordContext
	index     int // position in the heap
}

func (e *bufferEntry[K, V]) view() BufferedEntry[K, V] {
	return BufferedEntry[K, V]{
		Key:       e.key,
		Change:    e.change,
		Timestamp: e.timestamp,
		Deadline:  e.deadline,
		Context:   e.rc,
	}
}

// entryHeap orders entries by (deadline, seq) so that PopDue and EvictOldest
// agree on which entry is chronologically earliest.
type entryHeap[K comparable, V any] []*bufferEntry[K, V]

func (h entryHeap[K, V]) Len() int { return len(h) }

func (h entryHeap[K, V]) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[K, V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[K, V]) Push(x any) {
	e := x.(*bufferEntry[K, V])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimeOrderedBuffer holds at most one pending entry per key, retrievable in
// (deadline, insertion) order, with a running ledger of record count and
// estimated byte size. It is not safe for concurrent use; it is owned by
// exactly one Suppressor.
type TimeOrderedBuffer[K comparable, V any] struct {
	entries  map[K]*bufferEntry[K, V]
	heap     entryHeap[K, V]
	estimate SizeEstimator[K, V]
	seq      uint64
	records  int
	bytes    int64
}

// NewTimeOrderedBuffer creates an empty buffer using the given size
// estimator for its byte ledger.
func NewTimeOrderedBuffer[K comparable, V any](estimate SizeEstimator[K, V]) *TimeOrderedBuffer[K, V] {
	if estimate == nil {
		estimate = DefaultSizeEstimator[K, V]()
	}
	return &TimeOrderedBuffer[K, V]{
		entries:  make(map[K]*bufferEntry[K, V]),
		estimate: estimate,
	}
}

// Upsert inserts a new pending entry for key, or merges onto the existing
// one: the stored prior value is preserved from the entry's first buffering
// while the new side, timestamp, context and deadline are taken from the
// incoming update, repositioning the entry in the time order. It returns the
// ledger byte delta.
func (b *TimeOrderedBuffer[K, V]) Upsert(key K, change Change[V], timestamp, deadline int64, rc changefeed.RecordContext) int64 {
	if e, ok := b.entries[key]; ok {
		merged := e.change.merge(change)
		size := b.estimate(key, merged, rc)
		delta := size - e.size

		e.change = merged
		e.timestamp = timestamp
		e.deadline = deadline
		e.rc = rc
		e.size = size
		e.seq = b.nextSeq()
		heap.Fix(&b.heap, e.index)

		b.bytes += delta
		return delta
	}

	e := &bufferEntry[K, V]{
		key:       key,
		change:    change,
		timestamp: timestamp,
		deadline:  deadline,
		rc:        rc,
		seq:       b.nextSeq(),
	}
	e.size = b.estimate(key, change, rc)

	b.entries[key] = e
	heap.Push(&b.heap, e)
	b.records++
	b.bytes += e.size
	return e.size
}

// PopDue removes and yields, in ascending (deadline, insertion) order, every
// entry whose deadline has passed at the given stream time. The sequence is
// computed lazily; entries not consumed remain buffered.
func (b *TimeOrderedBuffer[K, V]) PopDue(streamTime int64) iter.Seq[BufferedEntry[K, V]] {
	return func(yield func(BufferedEntry[K, V]) bool) {
		for len(b.heap) > 0 && b.heap[0].deadline <= streamTime {
			if !yield(b.remove(b.heap[0]).view()) {
				return
			}
		}
	}
}

// EvictOldest removes and returns the chronologically earliest pending entry
// regardless of its deadline. The second return is false if the buffer is
// empty.
func (b *TimeOrderedBuffer[K, V]) EvictOldest() (BufferedEntry[K, V], bool) {
	if len(b.heap) == 0 {
		return BufferedEntry[K, V]{}, false
	}
	return b.remove(b.heap[0]).view(), true
}

// Sizes returns the current ledger totals.
func (b *TimeOrderedBuffer[K, V]) Sizes() (records int, bytes int64) {
	return b.records, b.bytes
}

// ProjectedSizes returns what the ledger totals would be after upserting the
// given update, without mutating the buffer. It lets the engine reject an
// update before it is ever stored.
func (b *TimeOrderedBuffer[K, V]) ProjectedSizes(key K, change Change[V], rc changefeed.RecordContext) (records int, bytes int64) {
	if e, ok := b.entries[key]; ok {
		return b.records, b.bytes - e.size + b.estimate(key, e.change.merge(change), rc)
	}
	return b.records + 1, b.bytes + b.estimate(key, change, rc)
}

func (b *TimeOrderedBuffer[K, V]) remove(e *bufferEntry[K, V]) *bufferEntry[K, V] {
	heap.Remove(&b.heap, e.index)
	delete(b.entries, e.key)
	b.records--
	b.bytes -= e.size
	return e
}

func (b *TimeOrderedBuffer[K, V]) nextSeq() uint64 {
	b.seq++
	return b.seq
}
