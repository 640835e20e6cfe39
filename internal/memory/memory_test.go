package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/turn-memory/internal/metrics"
	"github.com/rcliao/turn-memory/internal/model"
)

var base = time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemory(t *testing.T, capacity int) (*Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: base}
	rec, err := metrics.NewRecorder(nil)
	require.NoError(t, err)
	m := New("tester", Options{
		Capacity: capacity,
		Clock:    clock.Now,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Recorder: rec,
	})
	return m, clock
}

// plain has importance 10: no reliability, default intensity, no keywords.
func plain(topic string, at time.Time) model.Record {
	return model.Record{Timestamp: model.FormatTimestamp(at), MainTopic: topic}
}

// rich has importance 90.
func rich(at time.Time) model.Record {
	return model.Record{
		Timestamp: model.FormatTimestamp(at),
		RawInput:  "속초 바다 보러 주말에 친구랑 다녀왔어",
		MainTopic: "여행",
		SubTopics: map[string][]string{
			model.SubTopicSpatial:    {"속초"},
			model.SubTopicCompanions: {"친구"},
		},
		Keywords:         []string{"속초", "바다", "주말", "친구"},
		Sentiment:        &model.Sentiment{Type: model.SentimentPositive, Intensity: 100},
		Intent:           model.SimpleIntent("공유"),
		ReliabilityScore: 100,
		Decisions:        []model.Decision{{Category: "travel", Choice: "속초"}},
		Patterns:         map[string]map[string]int{"time": {"weekend": 1}},
	}
}

func TestRecordTurnKeepsCapacity(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	for i := 0; i < 25; i++ {
		m.RecordTurn(plain("일상", clock.Now()))
		assert.LessOrEqual(t, m.Stats().ShortTermSize, 10)
		clock.Advance(time.Minute)
	}
	st := m.Stats()
	assert.Equal(t, 10, st.ShortTermSize)
	assert.Equal(t, int64(25), st.Counters[metrics.Inserted])
	assert.Equal(t, int64(15), st.Counters[metrics.Promoted])
	assert.Equal(t, 15, st.Experiences)
}

func TestPromotionPrefersImportantEntry(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	var third model.ContextEntry
	for i := 1; i <= 11; i++ {
		r := plain("일상", clock.Now())
		if i == 3 {
			r = rich(clock.Now())
		}
		e := m.RecordTurn(r)
		if i == 3 {
			third = e
			assert.Equal(t, 90.0, e.Importance)
		} else {
			assert.Equal(t, 10.0, e.Importance)
		}
		clock.Advance(10 * time.Minute)
	}

	snap := m.Snapshot()
	require.Len(t, snap.ShortTerm, 10)
	for _, e := range snap.ShortTerm {
		assert.NotEqual(t, third.ID, e.ID)
	}

	lt := snap.LongTerm
	require.Len(t, lt.Experiences["여행"], 1)
	exp := lt.Experiences["여행"][0]
	assert.Equal(t, third.ID, exp.Entry.ID)
	assert.Equal(t, third.InsertedAt, exp.RecordedAt)
	assert.Equal(t, 100.0, exp.Reliability)
	assert.Equal(t, 1.0, lt.Preferences[model.SubTopicSpatial]["속초"])
	assert.Equal(t, 1.0, lt.Preferences[model.SubTopicCompanions]["친구"])
	require.Len(t, lt.Decisions["travel"], 1)
	assert.Equal(t, "속초", lt.Decisions["travel"][0].Choice)
	assert.Equal(t, 1, lt.Patterns["time"]["weekend"])
}

func TestPromotionTieTakesOldest(t *testing.T) {
	m, clock := newTestMemory(t, 2)
	first := m.RecordTurn(plain("a", clock.Now()))
	m.RecordTurn(plain("b", clock.Now()))
	m.RecordTurn(plain("c", clock.Now()))

	snap := m.Snapshot()
	require.Len(t, snap.LongTerm.Experiences["a"], 1)
	assert.Equal(t, first.ID, snap.LongTerm.Experiences["a"][0].Entry.ID)
}

func TestLongTermOnlyGrows(t *testing.T) {
	m, clock := newTestMemory(t, 3)
	prev := m.Snapshot().LongTerm
	for i := 0; i < 12; i++ {
		m.RecordTurn(rich(clock.Now()))
		clock.Advance(time.Hour)

		cur := m.Snapshot().LongTerm
		for cat, items := range prev.Preferences {
			for item, v := range items {
				assert.GreaterOrEqual(t, cur.Preferences[cat][item], v)
			}
		}
		for typ, items := range prev.Patterns {
			for p, v := range items {
				assert.GreaterOrEqual(t, cur.Patterns[typ][p], v)
			}
		}
		prev = cur
	}
	assert.Equal(t, 9.0, prev.Preferences[model.SubTopicSpatial]["속초"])
	assert.Equal(t, 9, prev.Patterns["time"]["weekend"])
}

func TestSweepRetentionBoundary(t *testing.T) {
	m, clock := newTestMemory(t, 1)
	m.RecordTurn(rich(clock.Now()))
	clock.Advance(time.Minute)
	m.RecordTurn(plain("일상", clock.Now()))

	snap := m.Snapshot()
	require.Len(t, snap.LongTerm.Experiences["여행"], 1)
	require.Len(t, snap.ShortTerm, 1)

	promotedAt := base
	res := m.Sweep(promotedAt.Add(DefaultRetention))
	assert.Zero(t, res.Total())
	assert.Len(t, m.Snapshot().LongTerm.Experiences["여행"], 1)

	res = m.Sweep(promotedAt.Add(DefaultRetention + time.Second))
	assert.Equal(t, SweepResult{ExperiencesRemoved: 1, DecisionsRemoved: 1}, res)

	lt := m.Snapshot().LongTerm
	assert.NotContains(t, lt.Experiences, "여행")
	assert.NotContains(t, lt.Decisions, "travel")
	assert.Equal(t, 1.0, lt.Preferences[model.SubTopicSpatial]["속초"])
	assert.Equal(t, 1, lt.Patterns["time"]["weekend"])
	assert.Len(t, m.Snapshot().ShortTerm, 1)

	res = m.Sweep(base.Add(time.Minute + DefaultRetention + time.Second))
	assert.Equal(t, 1, res.ShortTermRemoved)
	assert.Empty(t, m.Snapshot().ShortTerm)
}

func TestRecordTurnSweepsStaleEntries(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	m.RecordTurn(plain("old", clock.Now()))
	clock.Advance(DefaultRetention + time.Hour)
	m.RecordTurn(plain("new", clock.Now()))

	snap := m.Snapshot()
	require.Len(t, snap.ShortTerm, 1)
	assert.Equal(t, "new", snap.ShortTerm[0].Record.MainTopic)
}

func TestRelevantContext(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	m.RecordTurn(model.Record{Timestamp: model.FormatTimestamp(clock.Now()), MainTopic: "업무", Keywords: []string{"회의", "보고서"}})
	clock.Advance(time.Minute)
	older := m.RecordTurn(model.Record{Timestamp: model.FormatTimestamp(clock.Now()), MainTopic: "여행", Keywords: []string{"속초"}})
	clock.Advance(time.Minute)
	newer := m.RecordTurn(model.Record{Timestamp: model.FormatTimestamp(clock.Now()), MainTopic: "여행", Keywords: []string{"속초"}})

	got, ok := m.RelevantContext(model.Record{MainTopic: "여행", Keywords: []string{"속초", "바다"}})
	require.True(t, ok)
	assert.Equal(t, newer.ID, got.ID)
	assert.NotEqual(t, older.ID, got.ID)

	got, ok = m.RelevantContext(model.Record{MainTopic: "요리", Keywords: []string{"김치"}})
	assert.False(t, ok)
	assert.Nil(t, got)

	empty, _ := newTestMemory(t, 10)
	_, ok = empty.RelevantContext(model.Record{Keywords: []string{"속초"}})
	assert.False(t, ok)
}

func TestRecentContextAndSummary(t *testing.T) {
	m, clock := newTestMemory(t, 3)
	for i := 0; i < 6; i++ {
		m.RecordTurn(plain(fmt.Sprintf("topic-%d", i), clock.Now()))
		clock.Advance(time.Minute)
	}

	recent := m.RecentContext(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "topic-5", recent[0].Record.MainTopic)
	assert.Equal(t, "topic-4", recent[1].Record.MainTopic)
	assert.Len(t, m.RecentContext(0), 3)

	s := m.Summary()
	assert.Equal(t, 3, s.ShortTermSize)
	assert.Len(t, s.Recent, 3)
	assert.Len(t, s.Experiences, 3)
	require.NotNil(t, s.LastUpdate)
}

func TestSummaryReadsOneState(t *testing.T) {
	clock := &fakeClock{t: base}
	m := New("tester", Options{
		Capacity:    10,
		RecentLimit: 20,
		Clock:       clock.Now,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			m.RecordTurn(plain("여행", clock.Now()))
		}
	}()

	for {
		s := m.Summary()
		require.Len(t, s.Recent, s.ShortTermSize)
		select {
		case <-done:
			s = m.Summary()
			assert.Len(t, s.Recent, 10)
			assert.Equal(t, 190, s.Experiences["여행"])
			return
		default:
		}
	}
}

func TestSnapshotRestore(t *testing.T) {
	m, clock := newTestMemory(t, 4)
	for i := 0; i < 6; i++ {
		m.RecordTurn(rich(clock.Now()))
		clock.Advance(time.Minute)
	}
	snap := m.Snapshot()

	restored, _ := newTestMemory(t, 4)
	restored.Restore(snap)
	assert.Equal(t, snap.ShortTerm, restored.Snapshot().ShortTerm)
	assert.Equal(t, snap.LongTerm, restored.Snapshot().LongTerm)

	// mutating the export leaves the memory untouched
	snap.LongTerm.Preferences[model.SubTopicSpatial]["속초"] = 1000
	snap.ShortTerm[0].Record.Keywords[0] = "changed"
	assert.NotEqual(t, 1000.0, m.Snapshot().LongTerm.Preferences[model.SubTopicSpatial]["속초"])
	assert.Equal(t, "속초", m.Snapshot().ShortTerm[0].Record.Keywords[0])

	smaller, _ := newTestMemory(t, 2)
	smaller.Restore(m.Snapshot())
	st := smaller.Stats()
	assert.Equal(t, 2, st.ShortTermSize)
	assert.Equal(t, m.Stats().Experiences+2, st.Experiences)
}

func TestBufferPanicsWhenOverCapacity(t *testing.T) {
	b := newBuffer(1)
	b.entries = append(b.entries, model.ContextEntry{}, model.ContextEntry{})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrCapacityExceeded))
	}()
	b.checkCapacity()
}

func TestRecordTurnCountsDegradations(t *testing.T) {
	m, _ := newTestMemory(t, 10)
	m.RecordTurn(model.Record{})
	m.RecordTurn(model.Record{Timestamp: "not a time", Keywords: []string{"a"}})

	c := m.Stats().Counters
	assert.Equal(t, int64(1), c[metrics.MissingKeywords])
	assert.Equal(t, int64(2), c[metrics.MissingSubTopics])
	assert.Equal(t, int64(1), c[metrics.MissingTimestamp])
	assert.Equal(t, int64(1), c[metrics.UnparseableTimestamp])
}

func TestConcurrentUse(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.RecordTurn(rich(clock.Now()))
				m.RelevantContext(model.Record{Keywords: []string{"속초"}})
				_ = m.Snapshot()
				_ = m.Summary()
			}
		}()
	}
	wg.Wait()

	st := m.Stats()
	assert.Equal(t, 10, st.ShortTermSize)
	assert.Equal(t, int64(400), st.Counters[metrics.Inserted])
	assert.Equal(t, int64(390), st.Counters[metrics.Promoted])
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	m, clock := newTestMemory(t, 10)
	m.RecordTurn(plain("old", clock.Now()))
	clock.Advance(DefaultRetention + time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunSweeper(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return m.Stats().ShortTermSize == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRankHistoryThroughMemory(t *testing.T) {
	m, _ := newTestMemory(t, 10)
	current := model.Record{Timestamp: model.FormatTimestamp(base), Keywords: []string{"속초", "여행"}, MainTopic: "여행"}
	history := []model.Record{
		{Timestamp: model.FormatTimestamp(base.Add(-30 * time.Minute)), Keywords: []string{"속초", "여행"}, MainTopic: "여행"},
		{Timestamp: model.FormatTimestamp(base.Add(-48 * time.Hour)), Keywords: []string{"운동"}},
	}
	got := m.RankHistory(current, history, 5)
	require.Len(t, got, 1)
	assert.Equal(t, history[0].Timestamp, got[0].Record.Timestamp)
	assert.InDelta(t, 0.6*0.2, got[0].Score, 1e-9)
}
