package memory

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/scoring"
)

// ErrCapacityExceeded signals a broken buffer invariant. It is raised with
// panic: reaching it means the promotion logic itself is wrong.
var ErrCapacityExceeded = errors.New("memory: short-horizon buffer exceeds capacity")

// buffer is the short-horizon working set, oldest entry first.
type buffer struct {
	entries  []model.ContextEntry
	capacity int
}

func newBuffer(capacity int) *buffer {
	return &buffer{entries: make([]model.ContextEntry, 0, capacity+1), capacity: capacity}
}

// push appends e. When that breaches capacity exactly one entry leaves the
// buffer and is returned; promote is false only for the fallback eviction.
func (b *buffer) push(e model.ContextEntry, now time.Time) (out *model.ContextEntry, promote bool) {
	b.entries = append(b.entries, e)
	if len(b.entries) > b.capacity {
		out, promote = b.removeOne(now)
	}
	b.checkCapacity()
	return out, promote
}

// removeOne takes out the entry selected for promotion, or the oldest entry
// when nothing is selected.
func (b *buffer) removeOne(now time.Time) (*model.ContextEntry, bool) {
	if len(b.entries) == 0 {
		return nil, false
	}
	idx := b.selectForPromotion(now)
	promote := idx >= 0
	if !promote {
		idx = 0
	}
	removed := b.entries[idx]
	b.entries = slices.Delete(b.entries, idx, idx+1)
	return &removed, promote
}

// selectForPromotion returns the index of the entry with the highest
// transfer score, the first one on ties, or -1 for an empty buffer.
func (b *buffer) selectForPromotion(now time.Time) int {
	best, bestScore := -1, 0.0
	for i, e := range b.entries {
		s := scoring.TransferScore(now.Sub(e.InsertedAt), e.Importance)
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// trimBefore drops the leading entries inserted before cutoff. Entries are
// time-ordered, so the scan stops at the first one still in range.
func (b *buffer) trimBefore(cutoff time.Time) int {
	n := 0
	for n < len(b.entries) && b.entries[n].InsertedAt.Before(cutoff) {
		n++
	}
	if n > 0 {
		b.entries = slices.Delete(b.entries, 0, n)
	}
	return n
}

func (b *buffer) checkCapacity() {
	if len(b.entries) > b.capacity {
		panic(fmt.Errorf("%w: size %d, capacity %d", ErrCapacityExceeded, len(b.entries), b.capacity))
	}
}

func (b *buffer) len() int { return len(b.entries) }
