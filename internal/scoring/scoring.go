// Package scoring holds the pure relevance and importance functions shared by
// the memory buffer, the candidate gate and the prioritizer. Nothing here keeps
// state.
package scoring

import (
	"cmp"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/turn-memory/internal/model"
)

// Importance weights. A record's importance is
// reliability*0.3 + intensity*0.2 + 5 per keyword + 20 with sub-topics, capped at 100.
const (
	reliabilityWeight        = 0.3
	intensityWeight          = 0.2
	perKeywordBonus          = 5.0
	subTopicBonus            = 20.0
	defaultIntensity         = 50.0
	MaxImportance            = 100.0
	transferAgeWeight        = 0.6
	transferImportanceWeight = 0.4
)

// Time-bucket weights used by the prioritizer.
const (
	WeightRecent = 0.6
	WeightToday  = 0.3
	WeightOlder  = 0.1
	RecentWindow = time.Hour
)

// Jaccard returns |A∩B| / |A∪B| over the distinct, trimmed members of a and b.
// Either set being empty yields 0.
func Jaccard(a, b []string) float64 {
	sa, sb := toSet(a), toSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for k := range sa {
		if sb[k] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// Equal returns 1 when both strings are present and identical, else 0.
func Equal(a, b string) float64 {
	if a == "" || b == "" || a != b {
		return 0
	}
	return 1
}

// IntentMatch returns 1 when both intents are recorded and equal, else 0.
func IntentMatch(a, b model.Intent) float64 {
	if a.Equal(b) {
		return 1
	}
	return 0
}

// Importance scores how much a record is worth remembering, in [0, 100].
// A missing sentiment counts as intensity 50.
func Importance(r model.Record) float64 {
	score := clamp(r.ReliabilityScore, 0, 100) * reliabilityWeight

	intensity := defaultIntensity
	if r.Sentiment != nil {
		intensity = clamp(r.Sentiment.Intensity, 0, 100)
	}
	score += intensity * intensityWeight

	score += float64(len(toSet(r.Keywords))) * perKeywordBonus

	if r.HasSubTopics() {
		score += subTopicBonus
	}
	return clamp(score, 0, MaxImportance)
}

// TransferScore ranks buffer entries for promotion. The age term is in hours
// and unbounded, so age dominates at the margin and importance separates
// entries of similar age.
func TransferScore(age time.Duration, importance float64) float64 {
	if age < 0 {
		age = 0
	}
	return transferAgeWeight*age.Hours() + transferImportanceWeight*importance
}

// TimeWeight buckets a timestamp relative to now: within the last hour,
// the same calendar day, or older. An unparseable timestamp weighs 0.
func TimeWeight(timestamp string, now time.Time) float64 {
	t, ok := model.ParseTimestamp(timestamp)
	if !ok {
		return 0
	}
	if now.Sub(t) <= RecentWindow {
		return WeightRecent
	}
	ny, nm, nd := now.In(time.Local).Date()
	ty, tm, td := t.In(time.Local).Date()
	if ny == ty && nm == tm && nd == td {
		return WeightToday
	}
	return WeightOlder
}

// Clamp01 bounds v to [0, 1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// TopItems keeps the limit highest-valued entries of m. Ties are broken by key
// so the result is deterministic.
func TopItems[V cmp.Ordered](m map[string]V, limit int) map[string]V {
	if len(m) == 0 {
		return map[string]V{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}

func toSet(in []string) map[string]bool {
	if len(in) == 0 {
		return nil
	}
	s := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			s[v] = true
		}
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
