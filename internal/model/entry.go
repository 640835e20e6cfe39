package model

import (
	"sort"
	"strings"
	"time"
)

// ContextEntry is one short-horizon buffer element: a record plus the fields
// derived from it at insertion time. Importance is never recomputed.
type ContextEntry struct {
	ID         string     `json:"id"`
	Record     Record     `json:"record"`
	References References `json:"references"`
	Importance float64    `json:"importance"`
	InsertedAt time.Time  `json:"inserted_at"`
}

// References are the deduplicated strings a record points at.
type References struct {
	Topics   []string `json:"topics,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Temporal []string `json:"temporal,omitempty"`
	Spatial  []string `json:"spatial,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// ExtractReferences pulls topic, keyword, temporal, spatial and entity
// references out of a record. Each category is deduplicated and sorted.
func ExtractReferences(r Record) References {
	var refs References
	if t := r.Topic(); t != "" {
		refs.Topics = []string{t}
	}
	refs.Keywords = dedupSorted(r.Keywords)
	refs.Temporal = dedupSorted(r.SubTopic(SubTopicTemporal))
	refs.Spatial = dedupSorted(r.SubTopic(SubTopicSpatial))
	refs.Entities = dedupSorted(r.Entities)
	return refs
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
