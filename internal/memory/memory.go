// Package memory keeps a rolling per-subject memory of interaction records:
// a capacity-bounded short-horizon buffer that promotes its most valuable
// entry into a long-horizon store when it overflows, and a retention sweep
// that drops both once they go stale.
package memory

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/relevance"
	"github.com/rcliao/turn-memory/internal/scoring"
)

// Memory is one subject's memory. It is safe for concurrent use.
type Memory struct {
	subject string
	opts    Options
	logger  *slog.Logger
	rec     *metrics.Recorder
	ranker  *relevance.Ranker

	mu         sync.RWMutex
	buf        *buffer
	lt         *longTerm
	lastUpdate *time.Time
	entropy    *ulid.MonotonicEntropy
}

// New creates an empty memory for subject.
func New(subject string, opts Options) *Memory {
	opts = opts.withDefaults()
	rec := opts.Recorder
	if rec == nil {
		// a noop meter never fails
		rec, _ = metrics.NewRecorder(nil)
	}
	logger := opts.Logger.With("subject", subject)
	return &Memory{
		subject: subject,
		opts:    opts,
		logger:  logger,
		rec:     rec,
		ranker: &relevance.Ranker{
			Gate:        relevance.NewGate(opts.Gate, logger, rec),
			Prioritizer: relevance.NewPrioritizer(opts.Clock, rec),
		},
		buf:     newBuffer(opts.Capacity),
		lt:      newLongTerm(),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Subject returns the subject this memory belongs to.
func (m *Memory) Subject() string { return m.subject }

// Recorder returns the counters this memory reports to.
func (m *Memory) Recorder() *metrics.Recorder { return m.rec }

// RecordTurn adds a record to the buffer, promoting one entry if the buffer
// overflows, and then runs the retention sweep. It returns the new entry.
func (m *Memory) RecordTurn(r model.Record) model.ContextEntry {
	m.noteDegradations(r)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Clock()
	entry := model.ContextEntry{
		ID:         ulid.MustNew(ulid.Timestamp(now), m.entropy).String(),
		Record:     r.Clone(),
		References: model.ExtractReferences(r),
		Importance: scoring.Importance(r),
		InsertedAt: now,
	}
	m.rec.Event(metrics.Inserted, 1)

	if out, promote := m.buf.push(entry, now); out != nil {
		m.leave(*out, promote)
	}
	m.lastUpdate = &now
	m.sweepLocked(now)
	return cloneEntry(entry)
}

func (m *Memory) leave(e model.ContextEntry, promote bool) {
	if !promote {
		m.rec.Event(metrics.Evicted, 1)
		m.logger.Warn("evicted entry without promotion", "entry", e.ID)
		return
	}
	m.lt.promote(e)
	m.rec.Event(metrics.Promoted, 1)
	m.logger.Debug("promoted entry", "entry", e.ID, "topic", e.Record.Topic(), "importance", e.Importance)
}

func (m *Memory) noteDegradations(r model.Record) {
	if len(r.Keywords) == 0 {
		m.rec.Degraded(metrics.MissingKeywords)
	}
	if !r.HasSubTopics() {
		m.rec.Degraded(metrics.MissingSubTopics)
	}
	if r.Timestamp == "" {
		m.rec.Degraded(metrics.MissingTimestamp)
	} else if _, ok := r.Time(); !ok {
		m.rec.Degraded(metrics.UnparseableTimestamp)
	}
}

// RelevantContext returns the buffer entry most related to query by keyword
// overlap and topic, or false when nothing clears the threshold. On equal
// scores the most recent entry wins.
func (m *Memory) RelevantContext(query model.Record) (*model.ContextEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.ContextEntry
	bestScore := 0.0
	for i := len(m.buf.entries) - 1; i >= 0; i-- {
		e := &m.buf.entries[i]
		s := 0.6*scoring.Jaccard(query.Keywords, e.Record.Keywords) +
			0.4*scoring.Equal(query.Topic(), e.Record.Topic())
		if best == nil || s > bestScore {
			best, bestScore = e, s
		}
	}
	if best == nil || bestScore < m.opts.RelevantThreshold {
		return nil, false
	}
	c := cloneEntry(*best)
	return &c, true
}

// RankHistory returns the topK records of history most relevant to current.
// topK <= 0 returns every candidate the gate admits. It reads no memory state.
func (m *Memory) RankHistory(current model.Record, history []model.Record, topK int) []relevance.Ranked {
	return m.ranker.RankHistory(current, history, topK)
}

// RecentContext returns up to limit buffer entries, newest first. limit <= 0
// uses the configured recent limit.
func (m *Memory) RecentContext(limit int) []model.ContextEntry {
	if limit <= 0 {
		limit = m.opts.RecentLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recentLocked(limit)
}

func (m *Memory) recentLocked(limit int) []model.ContextEntry {
	out := make([]model.ContextEntry, 0, min(limit, m.buf.len()))
	for i := m.buf.len() - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneEntry(m.buf.entries[i]))
	}
	return out
}

// Summary condenses the memory: recent entries plus the top items of every
// long-term category.
func (m *Memory) Summary() model.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := m.opts.SummaryLimit
	s := model.Summary{
		ShortTermSize: m.buf.len(),
		Recent:        m.recentLocked(m.opts.RecentLimit),
		Preferences:   make(map[string]map[string]float64, len(m.lt.preferences)),
		Patterns:      make(map[string]map[string]int, len(m.lt.patterns)),
		LastUpdate:    copyTime(m.lastUpdate),
	}
	for category, items := range m.lt.preferences {
		s.Preferences[category] = scoring.TopItems(items, limit)
	}
	counts := make(map[string]int, len(m.lt.experiences))
	for topic, items := range m.lt.experiences {
		counts[topic] = len(items)
	}
	s.Experiences = scoring.TopItems(counts, limit)
	counts = make(map[string]int, len(m.lt.decisions))
	for category, items := range m.lt.decisions {
		counts[category] = len(items)
	}
	s.Decisions = scoring.TopItems(counts, limit)
	for typ, items := range m.lt.patterns {
		s.Patterns[typ] = scoring.TopItems(items, limit)
	}
	return s
}

// Snapshot exports the full memory. The result shares nothing with m.
func (m *Memory) Snapshot() model.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	short := make([]model.ContextEntry, len(m.buf.entries))
	for i, e := range m.buf.entries {
		short[i] = cloneEntry(e)
	}
	return model.Snapshot{
		Subject:    m.subject,
		ShortTerm:  short,
		LongTerm:   m.lt.export(),
		LastUpdate: copyTime(m.lastUpdate),
	}
}

// Restore replaces the memory's state with a snapshot. Short-term entries
// beyond capacity go through the normal promotion policy.
func (m *Memory) Restore(s model.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lt = restoreLongTerm(s.LongTerm)
	m.buf = newBuffer(m.opts.Capacity)
	now := m.opts.Clock()
	for _, e := range s.ShortTerm {
		if out, promote := m.buf.push(cloneEntry(e), now); out != nil {
			m.leave(*out, promote)
		}
	}
	m.lastUpdate = copyTime(s.LastUpdate)
}

// Stats describes a memory's current size and its counters.
type Stats struct {
	Subject       string           `json:"subject"`
	ShortTermSize int              `json:"short_term_size"`
	Capacity      int              `json:"capacity"`
	Preferences   int              `json:"preferences"`
	Experiences   int              `json:"experiences"`
	Decisions     int              `json:"decisions"`
	Patterns      int              `json:"patterns"`
	Counters      map[string]int64 `json:"counters"`
	LastUpdate    *time.Time       `json:"last_update,omitempty"`
}

// Stats reports sizes and counters.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{
		Subject:       m.subject,
		ShortTermSize: m.buf.len(),
		Capacity:      m.buf.capacity,
		Counters:      m.rec.Snapshot(),
		LastUpdate:    copyTime(m.lastUpdate),
	}
	for _, items := range m.lt.preferences {
		st.Preferences += len(items)
	}
	for _, items := range m.lt.experiences {
		st.Experiences += len(items)
	}
	for _, items := range m.lt.decisions {
		st.Decisions += len(items)
	}
	for _, items := range m.lt.patterns {
		st.Patterns += len(items)
	}
	return st
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
