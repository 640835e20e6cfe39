package relevance

import (
	"sort"
	"time"

	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/scoring"
)

// Weights are the per-factor weights of the prioritizer score.
type Weights struct {
	Location float64
	Temporal float64
	Topic    float64
	Intent   float64
}

// DefaultWeights favours shared places, then shared times, topic and intent.
var DefaultWeights = Weights{
	Location: 0.4,
	Temporal: 0.3,
	Topic:    0.2,
	Intent:   0.1,
}

// Ranked is a history record paired with its relevance score in [0, 1].
type Ranked struct {
	Record model.Record `json:"record"`
	Score  float64      `json:"score"`
}

// Prioritizer orders history records by relevance to a current record.
type Prioritizer struct {
	weights Weights
	now     func() time.Time
	rec     *metrics.Recorder
}

// NewPrioritizer creates a Prioritizer with DefaultWeights. now supplies the
// reference time for recency buckets; nil means time.Now. rec may be nil.
func NewPrioritizer(now func() time.Time, rec *metrics.Recorder) *Prioritizer {
	if now == nil {
		now = time.Now
	}
	return &Prioritizer{weights: DefaultWeights, now: now, rec: rec}
}

// Score computes one record's relevance: its recency bucket weight times the
// weighted sum of location, temporal, topic and intent overlap, clamped to [0, 1].
// A record without a usable timestamp scores 0 and is counted as degraded.
func (p *Prioritizer) Score(current, past model.Record, now time.Time) float64 {
	tw := scoring.TimeWeight(past.Timestamp, now)
	if tw == 0 {
		if past.Timestamp == "" {
			p.rec.Degraded(metrics.MissingTimestamp)
		} else {
			p.rec.Degraded(metrics.UnparseableTimestamp)
		}
		return 0
	}
	sum := p.weights.Location*scoring.Jaccard(
		current.SubTopic(model.SubTopicSpatial), past.SubTopic(model.SubTopicSpatial)) +
		p.weights.Temporal*scoring.Jaccard(
			current.SubTopic(model.SubTopicTemporal), past.SubTopic(model.SubTopicTemporal)) +
		p.weights.Topic*scoring.Equal(current.Topic(), past.Topic()) +
		p.weights.Intent*scoring.IntentMatch(current.Intent, past.Intent)
	return scoring.Clamp01(tw * sum)
}

// Rank scores every record and returns all of them, best first. Ties keep
// their input order. Callers decide how many to keep.
func (p *Prioritizer) Rank(current model.Record, history []model.Record) []Ranked {
	now := p.now()
	out := make([]Ranked, len(history))
	for i, past := range history {
		out[i] = Ranked{Record: past, Score: p.Score(current, past, now)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
