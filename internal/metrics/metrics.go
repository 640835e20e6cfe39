// Package metrics counts memory events and input degradations. Counts are
// kept in-process for Stats output and mirrored to OpenTelemetry counters
// when a meter is supplied.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Degradation kinds: inputs that were tolerated rather than rejected.
const (
	MissingKeywords      = "missing_keywords"
	MissingSubTopics     = "missing_sub_topics"
	MissingTimestamp     = "missing_timestamp"
	UnparseableTimestamp = "unparseable_timestamp"
	ComparerFailure      = "comparer_failure"
	EmptyCandidates      = "empty_candidates"
)

// Event kinds.
const (
	Inserted       = "inserted"
	Promoted       = "promoted"
	Evicted        = "evicted"
	SweptShortTerm = "swept_short_term"
	SweptLongTerm  = "swept_long_term"
)

// Recorder accumulates counters. A nil *Recorder discards everything.
type Recorder struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64

	degradations metric.Int64Counter
	events       metric.Int64Counter
}

// NewRecorder creates a Recorder. A nil meter uses a no-op provider.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("turn-memory")
	}
	r := &Recorder{counts: make(map[string]*atomic.Int64)}

	var err error
	r.degradations, err = meter.Int64Counter(
		"turnmemory.degradations",
		metric.WithDescription("Inputs tolerated with a neutral contribution"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	r.events, err = meter.Int64Counter(
		"turnmemory.events",
		metric.WithDescription("Buffer and store lifecycle events"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Degraded counts one tolerated input problem.
func (r *Recorder) Degraded(kind string) {
	if r == nil {
		return
	}
	r.counter(kind).Add(1)
	r.degradations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Event counts n lifecycle events of one kind.
func (r *Recorder) Event(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.counter(kind).Add(int64(n))
	r.events.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("event", kind)))
}

// Count returns the current value of one counter.
func (r *Recorder) Count(kind string) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	c, ok := r.counts[kind]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return c.Load()
}

// Snapshot copies all non-zero counters.
func (r *Recorder) Snapshot() map[string]int64 {
	out := map[string]int64{}
	if r == nil {
		return out
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, c := range r.counts {
		if v := c.Load(); v != 0 {
			out[k] = v
		}
	}
	return out
}

func (r *Recorder) counter(kind string) *atomic.Int64 {
	r.mu.RLock()
	c, ok := r.counts[kind]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counts[kind]; ok {
		return c
	}
	c = new(atomic.Int64)
	r.counts[kind] = c
	return c
}
