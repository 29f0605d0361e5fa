package cache_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/cache"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	fail   bool
	closed bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}}
}

var errStoreDown = errors.New("store down")

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, false, errStoreDown
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

type zoneView struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

func TestCacheRoundTripLocalOnly(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Minute, time.Minute, nil, nil)

	c.Set(ctx, "delivery:zones", []zoneView{{"Москва", 3}}, time.Minute)

	var got []zoneView
	require.True(t, c.Get(ctx, "delivery:zones", &got))
	assert.Equal(t, []zoneView{{"Москва", 3}}, got)

	c.Delete(ctx, "delivery:zones")
	assert.False(t, c.Get(ctx, "delivery:zones", &got))
	assert.NoError(t, c.Close())
}

func TestCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Minute, time.Minute, nil, nil)

	c.SetRaw(ctx, "k", []byte(`1`), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.GetRaw(ctx, "k")
	assert.False(t, ok)
}

func TestCacheReadsThroughSharedTier(t *testing.T) {
	ctx := context.Background()
	shared := newMemoryStore()
	shared.data["products:list"] = []byte(`{"name":"tea","days":1}`)

	c := cache.New(time.Minute, time.Minute, shared, nil)

	var got zoneView
	require.True(t, c.Get(ctx, "products:list", &got))
	assert.Equal(t, "tea", got.Name)

	// Served from the local tier once copied.
	delete(shared.data, "products:list")
	assert.True(t, c.Get(ctx, "products:list", &got))
}

func TestCacheInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	shared := newMemoryStore()
	c := cache.New(time.Minute, time.Minute, shared, nil)

	c.SetRaw(ctx, "delivery:points", []byte(`[]`), time.Minute)
	c.SetRaw(ctx, "delivery:zones", []byte(`[]`), time.Minute)
	c.SetRaw(ctx, "products:1", []byte(`{}`), time.Minute)

	c.InvalidatePrefix(ctx, "delivery:")

	_, ok := c.GetRaw(ctx, "delivery:points")
	assert.False(t, ok)
	_, ok = c.GetRaw(ctx, "delivery:zones")
	assert.False(t, ok)
	_, ok = c.GetRaw(ctx, "products:1")
	assert.True(t, ok)
	assert.Len(t, shared.data, 1)
}

func TestCacheSharedFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	shared := newMemoryStore()
	shared.fail = true
	c := cache.New(time.Minute, time.Minute, shared, nil)

	_, ok := c.GetRaw(ctx, "missing")
	assert.False(t, ok)

	c.SetRaw(ctx, "k", []byte(`1`), time.Minute)
	raw, ok := c.GetRaw(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `1`, string(raw))

	c.InvalidatePrefix(ctx, "k")
	require.NoError(t, c.Close())
	assert.True(t, shared.closed)
}
