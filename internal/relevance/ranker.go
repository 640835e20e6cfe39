package relevance

import "github.com/rcliao/turn-memory/internal/model"

// Ranker runs the gate and then the prioritizer over what it admits.
type Ranker struct {
	Gate        *Gate
	Prioritizer *Prioritizer
}

// RankHistory returns at most topK history records relevant to current, best
// first. topK <= 0 keeps every candidate. history must not contain current.
func (r *Ranker) RankHistory(current model.Record, history []model.Record, topK int) []Ranked {
	candidates := r.Gate.Filter(current, history)
	if len(candidates) == 0 {
		return []Ranked{}
	}
	records := make([]model.Record, len(candidates))
	for i, c := range candidates {
		records[i] = c.Record
	}
	ranked := r.Prioritizer.Rank(current, records)
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
