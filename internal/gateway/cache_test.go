package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMemoryCacheExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	now := time.Unix(1700000000, 0)
	mc := NewMemoryCache()
	defer mc.Close()
	mc.now = func() time.Time { return now }

	mc.Set("a", "1", time.Minute)
	v, ok := mc.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	now = now.Add(2 * time.Minute)
	_, ok = mc.Get("a")
	assert.False(t, ok)
	_, ok = mc.Take("a")
	assert.False(t, ok)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheTakeDeletes(t *testing.T) {
	defer goleak.VerifyNone(t)

	mc := NewMemoryCache()
	defer mc.Close()

	mc.Set("k", "v", time.Minute)
	v, ok := mc.Take("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	_, ok = mc.Take("k")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	now := time.Unix(1700000000, 0)
	mc := NewMemoryCache()
	defer mc.Close()
	mc.now = func() time.Time { return now }
	mc.MaxEntries = 2

	mc.Set("short", "1", time.Second)
	mc.Set("long", "2", time.Hour)
	mc.Set("new", "3", time.Hour)

	assert.Equal(t, 2, mc.Len())
	_, ok := mc.Get("short")
	assert.False(t, ok)
	_, ok = mc.Get("long")
	assert.True(t, ok)
}
