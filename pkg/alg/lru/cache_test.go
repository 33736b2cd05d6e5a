package lru_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectlab/pkg/alg/lru"
)

var errLoad = errors.New("load failed")

func TestCache_GetPut(t *testing.T) {
	t.Parallel()

	cache := lru.New[string, int](4)

	got, found := cache.Get("a")
	assert.False(t, found)
	assert.Zero(t, got)

	cache.Put("a", 1)

	got, found = cache.Get("a")
	require.True(t, found)
	assert.Equal(t, 1, got)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, string](3)
	cache.Put(1, "one")
	cache.Put(2, "two")
	cache.Put(3, "three")

	// Touch 1 so 2 becomes the oldest.
	_, _ = cache.Get(1)
	cache.Put(4, "four")

	_, found := cache.Get(2)
	assert.False(t, found)

	for _, k := range []int{1, 3, 4} {
		_, found = cache.Get(k)
		assert.True(t, found, "key %d", k)
	}

	assert.Equal(t, 3, cache.Len())
}

func TestCache_PutReplacesValue(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, string](2)
	cache.Put(1, "old")
	cache.Put(1, "new")

	got, _ := cache.Get(1)
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ZeroCapacityDisablesCaching(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](0)
	cache.Put(1, 1)

	assert.Zero(t, cache.Len())
}

func TestCache_GetOrLoad(t *testing.T) {
	t.Parallel()

	cache := lru.New[string, int](2)
	calls := 0

	load := func() (int, error) {
		calls++

		return 7, nil
	}

	for range 3 {
		v, err := cache.GetOrLoad("k", load)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}

	assert.Equal(t, 1, calls)

	_, err := cache.GetOrLoad("bad", func() (int, error) { return 0, errLoad })
	require.ErrorIs(t, err, errLoad)

	_, found := cache.Get("bad")
	assert.False(t, found)
}

func TestCache_StatsAndClear(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](8)
	cache.Put(1, 1)
	_, _ = cache.Get(1)
	_, _ = cache.Get(2)

	stats := cache.Stats()
	assert.Equal(t, lru.Stats{Hits: 1, Misses: 1, Entries: 1, MaxEntries: 8}, stats)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)

	cache.Clear()
	assert.Zero(t, cache.Len())
	assert.Equal(t, int64(1), cache.Stats().Hits)
}

func TestStats_HitRateEmpty(t *testing.T) {
	t.Parallel()

	assert.Zero(t, lru.Stats{}.HitRate())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	const workers, ops = 16, 200

	cache := lru.New[int, int](32)

	var wg sync.WaitGroup

	for w := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range ops {
				cache.Put((w*ops+i)%64, i)
				_, _ = cache.Get(i % 64)
			}
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 32)
	assert.Equal(t, int64(workers*ops), cache.Stats().Hits+cache.Stats().Misses)
}
