// Package suppress implements the suppression layer of a streaming table
// materialization pipeline: it sits between an upstream changefeed of
// key-to-value updates and a downstream consumer, and delays, coalesces, or
// drops updates according to a configurable policy, trading latency for
// reduced update volume.
//
// # Policies
//
// Two deadline rules are supported. UntilTimeLimit holds each update for a
// fixed delay past its own timestamp:
//
//	cfg := suppress.UntilTimeLimit(5*time.Minute, suppress.MaxRecords(10_000))
//
// UntilWindowCloses emits only final window results, holding every update
// until stream time passes the key's window end plus a grace period. The
// config is incomplete until the grace period is supplied:
//
//	cfg := suppress.UntilWindowCloses(suppress.MaxBytes(1 << 20)).
//	    WithGracePeriod(time.Minute)
//
// Final-results suppression requires a key type exposing its window end,
// such as Windowed:
//
//	key := suppress.NewWindowed("user-42", suppress.TimeWindow{Start: 0, End: 60_000})
//
// # Processing
//
// A Suppressor owns one partition's buffer and is driven synchronously, one
// update at a time. Emissions are pushed to the sink before Process returns:
//
//	s, err := suppress.NewSuppressor(cfg, func(key string, change suppress.Change[int64], ts int64, rc changefeed.RecordContext) error {
//	    return producer.Publish(key, change, ts, rc)
//	})
//	...
//	err = s.Process(key, change, record.Timestamp, record.Context)
//
// There is no background flush: a quiescent key stays buffered past its
// deadline until another update arrives to advance stream time.
//
// # Capacity
//
// The buffer ledger tracks record count and estimated byte size. When the
// configured ceiling is breached, the default emit-early strategy evicts and
// emits the chronologically oldest entries until the buffer fits again; the
// shut-down-when-full strategy instead fails the Process call with a
// CapacityError and never stores the offending update.
package suppress
