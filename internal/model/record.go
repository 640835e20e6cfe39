// Package model defines the core memory data types.
package model

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical wall-clock layout used by the text-analysis
// step. Lexical order of formatted timestamps matches chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// UnknownTopic is what the analyzer emits when it cannot classify a turn.
const UnknownTopic = "unknown"

// Recognized sub-topic categories.
const (
	SubTopicActivities = "activities"
	SubTopicTemporal   = "temporal"
	SubTopicSpatial    = "spatial"
	SubTopicCompanions = "companions"
)

// Sentiment types.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Record is the structured form of one conversational turn.
type Record struct {
	Timestamp        string                        `json:"timestamp"`
	RawInput         string                        `json:"input,omitempty"`
	MainTopic        string                        `json:"main_topic,omitempty"`
	SubTopics        map[string][]string           `json:"sub_topics,omitempty"`
	Keywords         []string                      `json:"keywords,omitempty"`
	Sentiment        *Sentiment                    `json:"sentiment,omitempty"`
	Intent           Intent                        `json:"intent,omitzero"`
	ReliabilityScore float64                       `json:"reliability_score,omitempty"`
	Entities         []string                      `json:"entities,omitempty"`
	Preferences      map[string]map[string]float64 `json:"preferences,omitempty"`
	Decisions        []Decision                    `json:"decisions,omitempty"`
	Patterns         map[string]map[string]int     `json:"patterns,omitempty"`
}

// Sentiment is the analyzer's emotional read of a turn.
type Sentiment struct {
	Type      string  `json:"type"`
	Intensity float64 `json:"intensity"`
	Detail    string  `json:"detail,omitempty"`
}

// Decision is a choice the subject made, as extracted by the analyzer.
type Decision struct {
	Category  string `json:"category"`
	Context   string `json:"context,omitempty"`
	Choice    string `json:"choice,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

// Time parses the record timestamp. Both TimestampLayout (local time) and
// RFC 3339 are accepted; ok is false for a missing or malformed value.
func (r Record) Time() (time.Time, bool) {
	return ParseTimestamp(r.Timestamp)
}

// Topic returns the main topic, or "" when the analyzer left it unset.
func (r Record) Topic() string {
	t := strings.TrimSpace(r.MainTopic)
	if t == UnknownTopic {
		return ""
	}
	return t
}

// SubTopic returns the values recorded for one sub-topic category.
func (r Record) SubTopic(category string) []string {
	if r.SubTopics == nil {
		return nil
	}
	return r.SubTopics[category]
}

// HasSubTopics reports whether any sub-topic category carries a value.
func (r Record) HasSubTopics() bool {
	for _, v := range r.SubTopics {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so the receiving store owns its data.
func (r Record) Clone() Record {
	c := r
	c.Keywords = cloneStrings(r.Keywords)
	c.Entities = cloneStrings(r.Entities)
	if r.SubTopics != nil {
		c.SubTopics = make(map[string][]string, len(r.SubTopics))
		for k, v := range r.SubTopics {
			c.SubTopics[k] = cloneStrings(v)
		}
	}
	if r.Sentiment != nil {
		s := *r.Sentiment
		c.Sentiment = &s
	}
	c.Intent = r.Intent.clone()
	if r.Preferences != nil {
		c.Preferences = make(map[string]map[string]float64, len(r.Preferences))
		for cat, items := range r.Preferences {
			m := make(map[string]float64, len(items))
			for k, v := range items {
				m[k] = v
			}
			c.Preferences[cat] = m
		}
	}
	if r.Decisions != nil {
		c.Decisions = append([]Decision(nil), r.Decisions...)
	}
	if r.Patterns != nil {
		c.Patterns = make(map[string]map[string]int, len(r.Patterns))
		for typ, items := range r.Patterns {
			m := make(map[string]int, len(items))
			for k, v := range items {
				m[k] = v
			}
			c.Patterns[typ] = m
		}
	}
	return c
}

// ParseTimestamp parses a wall-clock timestamp in either accepted layout.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatTimestamp renders t in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
