package memory

import (
	"time"

	"github.com/rcliao/turn-memory/internal/model"
)

// longTerm is the durable, category-partitioned store that promoted entries
// feed. Values only accumulate; list-backed categories are pruned by age.
type longTerm struct {
	preferences map[string]map[string]float64
	experiences map[string][]model.Experience
	decisions   map[string][]model.DecisionRecord
	patterns    map[string]map[string]int
}

func newLongTerm() *longTerm {
	return &longTerm{
		preferences: make(map[string]map[string]float64),
		experiences: make(map[string][]model.Experience),
		decisions:   make(map[string][]model.DecisionRecord),
		patterns:    make(map[string]map[string]int),
	}
}

// promote routes an entry's fields into the four categories.
func (lt *longTerm) promote(e model.ContextEntry) {
	r := e.Record

	for category, values := range r.SubTopics {
		for _, v := range values {
			if v != "" {
				lt.addPreference(category, v, 1)
			}
		}
	}
	for category, items := range r.Preferences {
		for item, score := range items {
			lt.addPreference(category, item, score)
		}
	}

	topic := r.Topic()
	if topic == "" {
		topic = model.UnknownTopic
	}
	lt.experiences[topic] = append(lt.experiences[topic], model.Experience{
		Entry:       cloneEntry(e),
		Topic:       topic,
		Details:     r.Clone().SubTopics,
		Sentiment:   r.Clone().Sentiment,
		Reliability: r.ReliabilityScore,
		RecordedAt:  e.InsertedAt,
	})

	for _, d := range r.Decisions {
		category := d.Category
		if category == "" {
			category = model.UnknownTopic
		}
		lt.decisions[category] = append(lt.decisions[category], model.DecisionRecord{
			Decision:   d,
			RecordedAt: e.InsertedAt,
		})
	}

	for typ, counts := range r.Patterns {
		if lt.patterns[typ] == nil {
			lt.patterns[typ] = make(map[string]int)
		}
		for pattern, n := range counts {
			lt.patterns[typ][pattern] += n
		}
	}
}

func (lt *longTerm) addPreference(category, item string, score float64) {
	if lt.preferences[category] == nil {
		lt.preferences[category] = make(map[string]float64)
	}
	lt.preferences[category][item] += score
}

// prune drops experiences and decisions recorded before cutoff, deleting keys
// left empty. Preference and pattern counters carry no timestamps and stay.
func (lt *longTerm) prune(cutoff time.Time) (experiences, decisions int) {
	for topic, items := range lt.experiences {
		kept := items[:0]
		for _, it := range items {
			if it.RecordedAt.Before(cutoff) {
				experiences++
				continue
			}
			kept = append(kept, it)
		}
		if len(kept) == 0 {
			delete(lt.experiences, topic)
		} else {
			lt.experiences[topic] = kept
		}
	}
	for category, items := range lt.decisions {
		kept := items[:0]
		for _, it := range items {
			if it.RecordedAt.Before(cutoff) {
				decisions++
				continue
			}
			kept = append(kept, it)
		}
		if len(kept) == 0 {
			delete(lt.decisions, category)
		} else {
			lt.decisions[category] = kept
		}
	}
	return experiences, decisions
}

// export deep-copies the store.
func (lt *longTerm) export() model.LongTerm {
	out := model.LongTerm{
		Preferences: make(map[string]map[string]float64, len(lt.preferences)),
		Experiences: make(map[string][]model.Experience, len(lt.experiences)),
		Decisions:   make(map[string][]model.DecisionRecord, len(lt.decisions)),
		Patterns:    make(map[string]map[string]int, len(lt.patterns)),
	}
	for k, v := range lt.preferences {
		out.Preferences[k] = copyMap(v)
	}
	for k, v := range lt.experiences {
		items := make([]model.Experience, len(v))
		for i, it := range v {
			items[i] = cloneExperience(it)
		}
		out.Experiences[k] = items
	}
	for k, v := range lt.decisions {
		out.Decisions[k] = append([]model.DecisionRecord(nil), v...)
	}
	for k, v := range lt.patterns {
		out.Patterns[k] = copyMap(v)
	}
	return out
}

// restoreLongTerm rebuilds a store from an export, taking copies.
func restoreLongTerm(src model.LongTerm) *longTerm {
	lt := newLongTerm()
	for k, v := range src.Preferences {
		lt.preferences[k] = copyMap(v)
	}
	for k, v := range src.Experiences {
		for _, it := range v {
			lt.experiences[k] = append(lt.experiences[k], cloneExperience(it))
		}
	}
	for k, v := range src.Decisions {
		lt.decisions[k] = append([]model.DecisionRecord(nil), v...)
	}
	for k, v := range src.Patterns {
		lt.patterns[k] = copyMap(v)
	}
	return lt
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEntry(e model.ContextEntry) model.ContextEntry {
	c := e
	c.Record = e.Record.Clone()
	c.References = model.References{
		Topics:   append([]string(nil), e.References.Topics...),
		Keywords: append([]string(nil), e.References.Keywords...),
		Temporal: append([]string(nil), e.References.Temporal...),
		Spatial:  append([]string(nil), e.References.Spatial...),
		Entities: append([]string(nil), e.References.Entities...),
	}
	return c
}

func cloneExperience(x model.Experience) model.Experience {
	c := x
	c.Entry = cloneEntry(x.Entry)
	c.Details = c.Entry.Record.SubTopics
	c.Sentiment = c.Entry.Record.Sentiment
	return c
}
