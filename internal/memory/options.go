package memory

import (
	"log/slog"
	"time"

	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/relevance"
)

const (
	DefaultCapacity          = 10
	DefaultRetention         = 30 * 24 * time.Hour
	DefaultRelevantThreshold = 0.3
	DefaultRecentLimit       = 5
	DefaultSummaryLimit      = 5
)

// Options configures a Memory. Zero fields take their defaults.
type Options struct {
	Capacity          int
	Retention         time.Duration
	RelevantThreshold float64
	RecentLimit       int
	SummaryLimit      int
	Gate              relevance.GateOptions

	// Clock supplies insertion and sweep times. Defaults to time.Now.
	Clock    func() time.Time
	Logger   *slog.Logger
	Recorder *metrics.Recorder
}

// DefaultOptions returns default memory options.
func DefaultOptions() Options {
	return Options{
		Capacity:          DefaultCapacity,
		Retention:         DefaultRetention,
		RelevantThreshold: DefaultRelevantThreshold,
		RecentLimit:       DefaultRecentLimit,
		SummaryLimit:      DefaultSummaryLimit,
		Gate:              relevance.DefaultGateOptions(),
		Clock:             time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	if o.Retention <= 0 {
		o.Retention = d.Retention
	}
	if o.RelevantThreshold <= 0 {
		o.RelevantThreshold = d.RelevantThreshold
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = d.RecentLimit
	}
	if o.SummaryLimit <= 0 {
		o.SummaryLimit = d.SummaryLimit
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
