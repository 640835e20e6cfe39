package relevance

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/scoring"
)

// DefaultCompareTimeout bounds each call to a Comparer.
const DefaultCompareTimeout = 5 * time.Second

// Comparer measures semantic similarity between two records, in [0, 1].
// Implementations call out to something slow (an embedding service or a
// hosted model) and must honour ctx cancellation.
type Comparer interface {
	Compare(ctx context.Context, current, candidate model.Record) (float64, error)
}

// Refiner re-scores gated candidates with a Comparer under a per-call deadline.
type Refiner struct {
	comparer Comparer
	timeout  time.Duration
	logger   *slog.Logger
	rec      *metrics.Recorder
}

// NewRefiner creates a Refiner. timeout <= 0 uses DefaultCompareTimeout.
func NewRefiner(c Comparer, timeout time.Duration, logger *slog.Logger, rec *metrics.Recorder) *Refiner {
	if timeout <= 0 {
		timeout = DefaultCompareTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{comparer: c, timeout: timeout, logger: logger, rec: rec}
}

// Refine replaces each candidate's score with the comparer's similarity and
// returns the best maxResults (all when maxResults <= 0). A failed or timed-out
// comparison scores 0 instead of failing the call.
func (r *Refiner) Refine(ctx context.Context, current model.Record, ranked []Ranked, maxResults int) []Ranked {
	out := make([]Ranked, len(ranked))
	for i, c := range ranked {
		out[i] = Ranked{Record: c.Record, Score: r.compare(ctx, current, c.Record)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func (r *Refiner) compare(ctx context.Context, current, candidate model.Record) float64 {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sim, err := r.comparer.Compare(cctx, current, candidate)
	if err != nil {
		r.rec.Degraded(metrics.ComparerFailure)
		r.logger.Warn("semantic comparison failed; scoring candidate 0",
			"candidate", candidate.Timestamp, "error", err)
		return 0
	}
	return scoring.Clamp01(sim)
}
