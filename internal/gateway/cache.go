package gateway

import (
	"sync"
	"time"
)

// CacheEntry 缓存条目
type CacheEntry struct {
	Value     string
	ExpiresAt time.Time
}

// MemoryCache 带过期时间的内存键值缓存，Redis 不可用时保存登录随机数和会话
type MemoryCache struct {
	entries map[string]CacheEntry
	mutex   sync.RWMutex
	now     func() time.Time

	// 配置
	MaxEntries      int
	CleanupInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		entries:         make(map[string]CacheEntry),
		now:             time.Now,
		MaxEntries:      10000,
		CleanupInterval: 1 * time.Minute,
		stop:            make(chan struct{}),
	}

	// 启动清理协程
	go cache.cleanup()

	return cache
}

// Get 获取未过期的值
func (mc *MemoryCache) Get(key string) (string, bool) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	entry, exists := mc.entries[key]
	if !exists || mc.now().After(entry.ExpiresAt) {
		return "", false
	}
	return entry.Value, true
}

// Take 取出并删除，过期的值视为不存在
func (mc *MemoryCache) Take(key string) (string, bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return "", false
	}
	delete(mc.entries, key)
	if mc.now().After(entry.ExpiresAt) {
		return "", false
	}
	return entry.Value, true
}

// Set 设置缓存条目
func (mc *MemoryCache) Set(key, value string, ttl time.Duration) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	// 检查是否超过最大条目数
	if _, exists := mc.entries[key]; !exists && len(mc.entries) >= mc.MaxEntries {
		// 删除一些过期条目
		mc.evictExpired()

		// 如果还是太多，删除最早过期的条目
		if len(mc.entries) >= mc.MaxEntries {
			mc.evictOldest()
		}
	}

	mc.entries[key] = CacheEntry{Value: value, ExpiresAt: mc.now().Add(ttl)}
}

// Delete 删除条目
func (mc *MemoryCache) Delete(key string) {
	mc.mutex.Lock()
	delete(mc.entries, key)
	mc.mutex.Unlock()
}

// Len 条目数（包括尚未清理的过期条目）
func (mc *MemoryCache) Len() int {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return len(mc.entries)
}

// Close 停止清理协程
func (mc *MemoryCache) Close() {
	mc.stopOnce.Do(func() { close(mc.stop) })
}

// evictExpired 删除过期条目
func (mc *MemoryCache) evictExpired() {
	now := mc.now()
	for key, entry := range mc.entries {
		if now.After(entry.ExpiresAt) {
			delete(mc.entries, key)
		}
	}
}

// evictOldest 删除最早过期的条目
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range mc.entries {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

// cleanup 清理过期条目
func (mc *MemoryCache) cleanup() {
	ticker := time.NewTicker(mc.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mutex.Lock()
			mc.evictExpired()
			mc.mutex.Unlock()
		case <-mc.stop:
			return
		}
	}
}
