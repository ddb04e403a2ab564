package caches

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gallery-service/internal/services/cache"
)

// MemoryCache is a size-bounded in-process cache with a per-entry TTL. Expired entries are
// treated as misses on read and swept in the background.
type MemoryCache struct {
	// mu serializes writers so the size budget check and the insert happen together.
	mu          sync.Mutex
	data        sync.Map // map[string][]byte
	metadata    sync.Map // map[string]*MemoryCacheEntry
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type MemoryCacheEntry struct {
	Size        int64
	CreatedAt   time.Time
	LastAccess  atomic.Int64 // unix nanos
	AccessCount atomic.Int64
}

func NewMemoryCache(maxSizeBytes int64, ttl time.Duration) *MemoryCache {
	mc := &MemoryCache{
		maxSize: maxSizeBytes,
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	sweep := ttl
	if sweep < time.Second {
		sweep = time.Second
	}
	go mc.cleanupExpired(sweep)

	return mc
}

// Close stops the background sweeper.
func (mc *MemoryCache) Close() {
	mc.stopOnce.Do(func() { close(mc.stop) })
}

func (mc *MemoryCache) Name() string {
	return "MEMORY"
}

func (mc *MemoryCache) Store(key string, data []byte) error {
	size := int64(len(data))
	if size > mc.maxSize {
		return fmt.Errorf("entry of size %d exceeds cache capacity %d", size, mc.maxSize)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.remove(key)
	for atomic.LoadInt64(&mc.currentSize)+size > mc.maxSize {
		if !mc.evictLRU() {
			return fmt.Errorf("unable to free space for entry of size %d", size)
		}
	}

	now := mc.now()
	entry := &MemoryCacheEntry{Size: size, CreatedAt: now}
	entry.LastAccess.Store(now.UnixNano())
	mc.data.Store(key, data)
	mc.metadata.Store(key, entry)
	atomic.AddInt64(&mc.currentSize, size)
	return nil
}

func (mc *MemoryCache) Get(key string) ([]byte, error) {
	if meta, ok := mc.metadata.Load(key); ok && mc.expired(meta.(*MemoryCacheEntry)) {
		mc.removeExpired(key)
	}
	if value, ok := mc.data.Load(key); ok {
		mc.updateAccess(key)
		mc.hits.Add(1)
		return value.([]byte), nil
	}

	mc.misses.Add(1)
	return nil, cache.ErrMiss
}

func (mc *MemoryCache) Exists(key string) (bool, error) {
	meta, ok := mc.metadata.Load(key)
	return ok && !mc.expired(meta.(*MemoryCacheEntry)), nil
}

func (mc *MemoryCache) Delete(key string) error {
	mc.mu.Lock()
	mc.remove(key)
	mc.mu.Unlock()
	return nil
}

// remove drops key and releases its size. Callers hold mu.
func (mc *MemoryCache) remove(key string) {
	if meta, ok := mc.metadata.LoadAndDelete(key); ok {
		entry := meta.(*MemoryCacheEntry)
		atomic.AddInt64(&mc.currentSize, -entry.Size)
		mc.data.Delete(key)
	}
}

// removeExpired re-checks expiry under mu so a concurrent Store of a fresh value survives.
func (mc *MemoryCache) removeExpired(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if meta, ok := mc.metadata.Load(key); ok && mc.expired(meta.(*MemoryCacheEntry)) {
		mc.remove(key)
	}
}

func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.data.Range(func(key, value interface{}) bool {
		mc.data.Delete(key)
		return true
	})
	mc.metadata.Range(func(key, value interface{}) bool {
		mc.metadata.Delete(key)
		return true
	})
	atomic.StoreInt64(&mc.currentSize, 0)
	mc.hits.Store(0)
	mc.misses.Store(0)

	log.Printf("Memory cache: cleared all entries")
	return nil
}

func (mc *MemoryCache) GetStats() cache.LayerStats {
	hits := mc.hits.Load()
	misses := mc.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	count := 0
	mc.data.Range(func(key, value interface{}) bool {
		count++
		return true
	})

	return cache.LayerStats{
		Name:      "Memory",
		Objects:   count,
		SizeBytes: atomic.LoadInt64(&mc.currentSize),
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
	}
}

func (mc *MemoryCache) expired(entry *MemoryCacheEntry) bool {
	return mc.ttl > 0 && mc.now().Sub(entry.CreatedAt) > mc.ttl
}

func (mc *MemoryCache) updateAccess(key string) {
	if meta, ok := mc.metadata.Load(key); ok {
		entry := meta.(*MemoryCacheEntry)
		entry.LastAccess.Store(mc.now().UnixNano())
		entry.AccessCount.Add(1)
	}
}

// evictLRU drops the least recently read entry. Callers hold mu.
func (mc *MemoryCache) evictLRU() bool {
	var oldestKey string
	var oldestTime int64

	mc.metadata.Range(func(key, value interface{}) bool {
		last := value.(*MemoryCacheEntry).LastAccess.Load()
		if oldestKey == "" || last < oldestTime {
			oldestKey = key.(string)
			oldestTime = last
		}
		return true
	})

	if oldestKey == "" {
		return false
	}
	mc.remove(oldestKey)
	return true
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
		}

		var expiredKeys []string
		mc.metadata.Range(func(key, value interface{}) bool {
			if mc.expired(value.(*MemoryCacheEntry)) {
				expiredKeys = append(expiredKeys, key.(string))
			}
			return true
		})
		for _, key := range expiredKeys {
			mc.removeExpired(key)
		}
		if len(expiredKeys) > 0 {
			log.Printf("Memory cache: cleaned up %d expired entries", len(expiredKeys))
		}
	}
}
