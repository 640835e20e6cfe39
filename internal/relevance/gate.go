// Package relevance narrows and ranks a subject's history against a new record.
//
// The Gate is a cheap pre-filter (keyword overlap plus a recency window) that
// runs before anything expensive; the Prioritizer orders what the gate lets
// through with a multi-factor weighted score.
package relevance

import (
	"log/slog"
	"sort"
	"time"

	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/scoring"
)

const (
	DefaultWindow           = time.Hour
	DefaultKeywordThreshold = 0.3
	DefaultMaxPerFilter     = 2
)

// GateOptions configures the candidate gate.
type GateOptions struct {
	Window           time.Duration // how far back the time filter looks
	KeywordThreshold float64       // minimum keyword Jaccard similarity
	MaxPerFilter     int           // cap applied to each filter separately
}

// DefaultGateOptions returns the default gate configuration.
func DefaultGateOptions() GateOptions {
	return GateOptions{
		Window:           DefaultWindow,
		KeywordThreshold: DefaultKeywordThreshold,
		MaxPerFilter:     DefaultMaxPerFilter,
	}
}

// Source records which filter admitted a candidate.
type Source uint8

const (
	SourceKeyword Source = 1 << iota
	SourceTime
)

// Has reports whether s includes f.
func (s Source) Has(f Source) bool { return s&f != 0 }

// Candidate is a history record admitted by the gate. Score is its keyword
// similarity to the current record (0 when only the time filter admitted it).
type Candidate struct {
	Record model.Record `json:"record"`
	Score  float64      `json:"score"`
	Source Source       `json:"source"`
}

// Gate is the two-stage candidate filter.
type Gate struct {
	opts   GateOptions
	logger *slog.Logger
	rec    *metrics.Recorder
}

// NewGate creates a Gate. Zero option fields take their defaults.
func NewGate(opts GateOptions, logger *slog.Logger, rec *metrics.Recorder) *Gate {
	def := DefaultGateOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.KeywordThreshold <= 0 {
		opts.KeywordThreshold = def.KeywordThreshold
	}
	if opts.MaxPerFilter <= 0 {
		opts.MaxPerFilter = def.MaxPerFilter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{opts: opts, logger: logger, rec: rec}
}

// Options returns the effective configuration.
func (g *Gate) Options() GateOptions { return g.opts }

// Filter returns the union of the keyword and time filters, deduplicated by
// timestamp. Keyword candidates come first. Records sharing a timestamp
// collapse into one, so callers must keep timestamps unique per subject.
// An empty result means there is no relevant history.
func (g *Gate) Filter(current model.Record, history []model.Record) []Candidate {
	byKeyword := g.ByKeywords(current, history)
	byTime := g.ByTime(current, history)

	out := make([]Candidate, 0, len(byKeyword)+len(byTime))
	index := make(map[string]int, len(byKeyword)+len(byTime))
	for _, c := range append(byKeyword, byTime...) {
		if i, ok := index[c.Record.Timestamp]; ok {
			out[i].Source |= c.Source
			continue
		}
		index[c.Record.Timestamp] = len(out)
		out = append(out, c)
	}

	if len(out) == 0 {
		g.rec.Degraded(metrics.EmptyCandidates)
	}
	g.logger.Debug("candidate gate",
		"history", len(history),
		"keyword", len(byKeyword),
		"time", len(byTime),
		"unique", len(out))
	return out
}

// ByKeywords keeps history records whose keyword Jaccard similarity with the
// current record reaches the threshold, best first, capped.
func (g *Gate) ByKeywords(current model.Record, history []model.Record) []Candidate {
	if len(current.Keywords) == 0 {
		g.rec.Degraded(metrics.MissingKeywords)
		g.logger.Warn("current record has no keywords; keyword filter skipped",
			"timestamp", current.Timestamp)
		return nil
	}

	var scored []Candidate
	for _, past := range history {
		if len(past.Keywords) == 0 {
			continue
		}
		sim := scoring.Jaccard(current.Keywords, past.Keywords)
		if sim >= g.opts.KeywordThreshold {
			scored = append(scored, Candidate{Record: past, Score: scoring.Clamp01(sim), Source: SourceKeyword})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > g.opts.MaxPerFilter {
		scored = scored[:g.opts.MaxPerFilter]
	}
	return scored
}

// ByTime keeps history records stamped within the window before the current
// record, newest first, capped. Records without a usable timestamp are skipped.
func (g *Gate) ByTime(current model.Record, history []model.Record) []Candidate {
	now, ok := current.Time()
	if !ok {
		if current.Timestamp == "" {
			g.rec.Degraded(metrics.MissingTimestamp)
		} else {
			g.rec.Degraded(metrics.UnparseableTimestamp)
		}
		g.logger.Warn("current record has no usable timestamp; time filter skipped",
			"timestamp", current.Timestamp)
		return nil
	}

	type timed struct {
		c  Candidate
		at time.Time
	}
	var within []timed
	for _, past := range history {
		at, ok := past.Time()
		if !ok {
			g.rec.Degraded(metrics.UnparseableTimestamp)
			g.logger.Debug("skipping history record with bad timestamp", "timestamp", past.Timestamp)
			continue
		}
		diff := now.Sub(at)
		if diff < 0 || diff > g.opts.Window {
			continue
		}
		within = append(within, timed{c: Candidate{Record: past, Source: SourceTime}, at: at})
	}
	sort.SliceStable(within, func(i, j int) bool {
		return within[i].at.After(within[j].at)
	})
	if len(within) > g.opts.MaxPerFilter {
		within = within[:g.opts.MaxPerFilter]
	}

	out := make([]Candidate, len(within))
	for i, w := range within {
		out[i] = w.c
	}
	return out
}
