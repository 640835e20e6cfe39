package model

import "time"

// Experience is a promoted buffer entry filed under its topic.
type Experience struct {
	Entry       ContextEntry        `json:"entry"`
	Topic       string              `json:"topic"`
	Details     map[string][]string `json:"details,omitempty"`
	Sentiment   *Sentiment          `json:"sentiment,omitempty"`
	Reliability float64             `json:"reliability"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

// DecisionRecord is a decision carried into long-term memory by a promotion.
type DecisionRecord struct {
	Decision
	RecordedAt time.Time `json:"recorded_at"`
}

// LongTerm is the exported form of the long-horizon store.
type LongTerm struct {
	Preferences map[string]map[string]float64 `json:"preferences"`
	Experiences map[string][]Experience       `json:"experiences"`
	Decisions   map[string][]DecisionRecord   `json:"decisions"`
	Patterns    map[string]map[string]int     `json:"patterns"`
}

// Snapshot is a read-only export of one subject's memory, suitable for
// persistence and debugging.
type Snapshot struct {
	Subject    string         `json:"subject,omitempty"`
	ShortTerm  []ContextEntry `json:"short_term"`
	LongTerm   LongTerm       `json:"long_term"`
	LastUpdate *time.Time     `json:"last_update,omitempty"`
}

// Summary is a condensed view of a memory: buffer size, the newest entries,
// and the top items of each long-term category.
type Summary struct {
	ShortTermSize int                           `json:"short_term_size"`
	Recent        []ContextEntry                `json:"recent"`
	Preferences   map[string]map[string]float64 `json:"preferences"`
	Experiences   map[string]int                `json:"experiences"`
	Decisions     map[string]int                `json:"decisions"`
	Patterns      map[string]map[string]int     `json:"patterns"`
	LastUpdate    *time.Time                    `json:"last_update,omitempty"`
}
