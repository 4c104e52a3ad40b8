package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncrementIsLinearizable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)
	key := Key{ChatID: -100, UserID: 7}
	other := Key{ChatID: -100, UserID: 8}

	const workers = 64
	seen := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := store.Increment(ctx, key, time.Now())
			assert.NoError(t, err)
			seen[i] = n
		}(i)
	}
	wg.Wait()

	rec, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, workers, rec.WarnCount)

	// every observed count is unique: no two increments saw the same pre-increment value
	unique := make(map[int]struct{}, workers)
	for _, n := range seen {
		unique[n] = struct{}{}
	}
	assert.Len(t, unique, workers)

	otherRec, err := store.Get(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, otherRec.WarnCount)
}

func TestMemoryStoreGetCreatesZeroRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)
	rec, err := store.Get(ctx, Key{ChatID: 1, UserID: 2})
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)
	key := Key{ChatID: 1, UserID: 2}

	for i := 0; i < 3; i++ {
		_, err := store.Increment(ctx, key, time.Now())
		require.NoError(t, err)
	}
	require.NoError(t, store.Reset(ctx, key))
	assert.Zero(t, store.Len())

	n, err := store.Increment(ctx, key, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	renewed := Key{ChatID: 1, UserID: 1}
	idle := Key{ChatID: 1, UserID: 2}

	_, err := store.Increment(ctx, renewed, base)
	require.NoError(t, err)
	_, err = store.Increment(ctx, idle, base.Add(50*time.Minute))
	require.NoError(t, err)

	// an expired record restarts from one
	n, err := store.Increment(ctx, renewed, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dropped := store.Sweep(base.Add(2*time.Hour + 30*time.Minute))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreSweepWithoutTTLKeepsEverything(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0)
	_, err := store.Increment(context.Background(), Key{ChatID: 1, UserID: 1}, time.Unix(0, 1))
	require.NoError(t, err)
	assert.Zero(t, store.Sweep(time.Now()))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreStartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	require.NoError(t, store.Start(ctx))
	require.NoError(t, store.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, store.Stop(stopCtx))
	require.NoError(t, store.Stop(stopCtx))
}
