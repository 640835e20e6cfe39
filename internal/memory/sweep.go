package memory

import (
	"context"
	"time"

	"github.com/rcliao/turn-memory/internal/metrics"
)

// SweepResult reports what one retention sweep removed.
type SweepResult struct {
	ShortTermRemoved   int `json:"short_term_removed"`
	ExperiencesRemoved int `json:"experiences_removed"`
	DecisionsRemoved   int `json:"decisions_removed"`
}

// Total is the number of items removed across all stores.
func (r SweepResult) Total() int {
	return r.ShortTermRemoved + r.ExperiencesRemoved + r.DecisionsRemoved
}

// Sweep removes everything older than the retention period as of now.
// Entries exactly at the cutoff are kept.
func (m *Memory) Sweep(now time.Time) SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

func (m *Memory) sweepLocked(now time.Time) SweepResult {
	cutoff := now.Add(-m.opts.Retention)
	var res SweepResult
	res.ShortTermRemoved = m.buf.trimBefore(cutoff)
	res.ExperiencesRemoved, res.DecisionsRemoved = m.lt.prune(cutoff)

	if res.ShortTermRemoved > 0 {
		m.rec.Event(metrics.SweptShortTerm, res.ShortTermRemoved)
	}
	if n := res.ExperiencesRemoved + res.DecisionsRemoved; n > 0 {
		m.rec.Event(metrics.SweptLongTerm, n)
	}
	if res.Total() > 0 {
		m.logger.Debug("retention sweep", "subject", m.subject,
			"short_term", res.ShortTermRemoved,
			"experiences", res.ExperiencesRemoved,
			"decisions", res.DecisionsRemoved)
	}
	return res
}

// RunSweeper sweeps on every tick of interval until ctx is done. It is meant
// for long-running processes where records arrive rarely.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(m.opts.Clock())
		}
	}
}
