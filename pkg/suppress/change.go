package suppress

// Change represents a transition of a key's materialized value. Either side
// may be absent: an absent After marks a tombstone (deletion of the key's
// value), an absent Before means no prior value is known.
type Change[V any] struct {
	Before *V
	After  *V
}

// NewChange builds a change from explicit before and after values.
func NewChange[V any](before, after *V) Change[V] {
	return Change[V]{Before: before, After: after}
}

// Tombstone builds a deletion change carrying only the prior value.
func Tombstone[V any](before *V) Change[V] {
	return Change[V]{Before: before}
}

// IsTombstone reports whether the change deletes the key's value.
func (c Change[V]) IsTombstone() bool {
	return c.After == nil
}

// merge folds a newer change onto c. The earliest known prior value is
// preserved while the new side is replaced, so two pending updates to one
// key collapse into a single old-to-newest transition.
func (c Change[V]) merge(newer Change[V]) Change[V] {
	return Change[V]{Before: c.Before, After: newer.After}
}

// Ptr is a convenience for building changes from literal values.
func Ptr[V any](v V) *V {
	return &v
}
