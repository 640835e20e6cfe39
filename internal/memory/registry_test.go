package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/turn-memory/internal/model"
)

func TestRegistryLoadsOnceAndEvicts(t *testing.T) {
	ctx := context.Background()
	seed, clock := newTestMemory(t, 10)
	seed.RecordTurn(plain("여행", clock.Now()))
	stored := seed.Snapshot()

	var mu sync.Mutex
	loads := map[string]int{}
	var evicted []string

	load := func(_ context.Context, subject string) (*model.Snapshot, error) {
		mu.Lock()
		loads[subject]++
		mu.Unlock()
		if subject == "alice" {
			snap := stored
			return &snap, nil
		}
		return nil, nil
	}
	evict := func(m *Memory) { evicted = append(evicted, m.Subject()) }

	reg, err := NewRegistry(2, Options{Clock: clock.Now}, load, evict)
	require.NoError(t, err)

	alice, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Stats().ShortTermSize)

	again, _ := reg.Get(ctx, "alice")
	assert.Same(t, alice, again)
	assert.Equal(t, 1, loads["alice"])

	bob, _ := reg.Get(ctx, "bob")
	assert.Zero(t, bob.Stats().ShortTermSize)
	bob.RecordTurn(plain("업무", clock.Now()))
	assert.Zero(t, alice.Stats().Experiences, "subjects share nothing")

	reg.Get(ctx, "alice") // alice becomes most recent
	reg.Get(ctx, "carol")
	assert.Equal(t, []string{"bob"}, evicted)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryLoadError(t *testing.T) {
	boom := errors.New("disk on fire")
	reg, err := NewRegistry(0, Options{}, func(context.Context, string) (*model.Snapshot, error) {
		return nil, boom
	}, nil)
	require.NoError(t, err)

	_, err = reg.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, reg.Len())
}
