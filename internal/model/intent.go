package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Intent is what the subject is trying to do in a turn. It is either a bare
// label (Simple) or a Detailed form; the analyzer emits both shapes and they
// are resolved here, once, when a record is decoded.
type Intent struct {
	label    string
	detailed *DetailedIntent
}

// DetailedIntent is the structured intent form.
type DetailedIntent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Context string `json:"context,omitempty"`
}

// SimpleIntent builds a label-only intent.
func SimpleIntent(label string) Intent {
	return Intent{label: label}
}

// NewDetailedIntent builds a structured intent.
func NewDetailedIntent(d DetailedIntent) Intent {
	return Intent{detailed: &d}
}

// IsZero reports whether no intent was recorded.
func (i Intent) IsZero() bool {
	if i.detailed != nil {
		return i.detailed.Type == "" && i.detailed.Subtype == "" && i.detailed.Context == ""
	}
	return i.label == ""
}

// Detailed returns the structured form, if this is one.
func (i Intent) Detailed() (DetailedIntent, bool) {
	if i.detailed == nil {
		return DetailedIntent{}, false
	}
	return *i.detailed, true
}

// Label returns the simple label, or the type of a detailed intent.
func (i Intent) Label() string {
	if i.detailed != nil {
		return i.detailed.Type
	}
	return i.label
}

// Equal reports whether two recorded intents are the same. A simple intent
// never equals a detailed one, and a missing intent equals nothing.
func (i Intent) Equal(o Intent) bool {
	if i.IsZero() || o.IsZero() {
		return false
	}
	if (i.detailed == nil) != (o.detailed == nil) {
		return false
	}
	if i.detailed != nil {
		return *i.detailed == *o.detailed
	}
	return i.label == o.label
}

func (i Intent) String() string {
	if i.detailed != nil {
		if i.detailed.Subtype != "" {
			return i.detailed.Type + "/" + i.detailed.Subtype
		}
		return i.detailed.Type
	}
	return i.label
}

func (i Intent) clone() Intent {
	if i.detailed == nil {
		return i
	}
	d := *i.detailed
	return Intent{detailed: &d}
}

// MarshalJSON writes a simple intent as a string and a detailed one as an object.
func (i Intent) MarshalJSON() ([]byte, error) {
	switch {
	case i.detailed != nil:
		return json.Marshal(i.detailed)
	case i.label != "":
		return json.Marshal(i.label)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an object, or null. Objects may use the
// English keys or the Korean keys the upstream analyzer produces.
func (i *Intent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*i = Intent{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &i.label)
	case '{':
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode intent: %w", err)
		}
		d := DetailedIntent{
			Type:    firstString(raw, "type", "유형"),
			Subtype: firstString(raw, "subtype", "세부유형"),
			Context: firstString(raw, "context", "맥락"),
		}
		i.detailed = &d
		return nil
	default:
		return fmt.Errorf("decode intent: unsupported json %s", string(data))
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
