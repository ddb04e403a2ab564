package caches

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-service/internal/services/cache"
)

func TestMemoryCacheStoreGet(t *testing.T) {
	mc := NewMemoryCache(1024, time.Minute)
	defer mc.Close()

	require.NoError(t, mc.Store("0xk", []byte("items")))
	got, err := mc.Get("0xk")
	require.NoError(t, err)
	assert.Equal(t, []byte("items"), got)

	_, err = mc.Get("0xother")
	assert.ErrorIs(t, err, cache.ErrMiss)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(5), stats.SizeBytes)

	require.NoError(t, mc.Store("0xk", []byte("abc")))
	assert.Equal(t, int64(3), mc.GetStats().SizeBytes, "replacing an entry releases its old size")
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache(1024, time.Minute)
	defer mc.Close()
	now := time.Now()
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Store("0xk", []byte("items")))
	ok, _ := mc.Exists("0xk")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = mc.Exists("0xk")
	assert.False(t, ok)
	_, err := mc.Get("0xk")
	assert.ErrorIs(t, err, cache.ErrMiss)
	assert.Equal(t, int64(0), mc.GetStats().SizeBytes)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(10, time.Minute)
	defer mc.Close()
	now := time.Now()
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Store("a", []byte("aaaa")))
	now = now.Add(time.Second)
	require.NoError(t, mc.Store("b", []byte("bbbb")))
	now = now.Add(time.Second)
	_, err := mc.Get("a")
	require.NoError(t, err)
	now = now.Add(time.Second)

	require.NoError(t, mc.Store("c", []byte("cccc")))
	ok, _ := mc.Exists("b")
	assert.False(t, ok)
	ok, _ = mc.Exists("a")
	assert.True(t, ok)

	assert.Error(t, mc.Store("huge", make([]byte, 11)))
}

func TestMemoryCacheClear(t *testing.T) {
	mc := NewMemoryCache(64, time.Minute)
	defer mc.Close()
	require.NoError(t, mc.Store("a", []byte("x")))
	require.NoError(t, mc.Clear())
	assert.Equal(t, 0, mc.GetStats().Objects)
}

func TestMemoryCacheConcurrentGetStore(t *testing.T) {
	mc := NewMemoryCache(64, time.Minute)
	defer mc.Close()
	require.NoError(t, mc.Store("a", make([]byte, 16)))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = mc.Get("a")
				assert.NoError(t, mc.Store(fmt.Sprintf("0x%d-%d", w, i%6), make([]byte, 16)))
				assert.LessOrEqual(t, mc.GetStats().SizeBytes, int64(64))
			}
		}(w)
	}
	wg.Wait()

	var stored int64
	mc.data.Range(func(_, value interface{}) bool {
		stored += int64(len(value.([]byte)))
		return true
	})
	stats := mc.GetStats()
	assert.LessOrEqual(t, stats.SizeBytes, int64(64))
	assert.Equal(t, stored, stats.SizeBytes)
	assert.Equal(t, 4, stats.Objects)
}
