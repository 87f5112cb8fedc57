// pkg/backend/schemacache_test.go
package backend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCacheFetchesOnce(t *testing.T) {
	cache := NewSchemaCache()
	calls := 0
	fetch := func(ctx context.Context, table string) (map[string]string, error) {
		calls++
		return map[string]string{"pid": "UInt16"}, nil
	}

	for i := 0; i < 5; i++ {
		m, err := cache.GetOrFetch(context.Background(), "temp", fetch)
		require.NoError(t, err)
		assert.Equal(t, "UInt16", m["pid"])
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Len())

	m, ok := cache.Get("temp")
	assert.True(t, ok)
	assert.Equal(t, "UInt16", m["pid"])
	_, ok = cache.Get("activity")
	assert.False(t, ok)
}

func TestSchemaCacheDoesNotCacheFailures(t *testing.T) {
	cache := NewSchemaCache()
	calls := 0
	fetch := func(ctx context.Context, table string) (map[string]string, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		return map[string]string{"pid": "UInt16"}, nil
	}

	_, err := cache.GetOrFetch(context.Background(), "temp", fetch)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	m, err := cache.GetOrFetch(context.Background(), "temp", fetch)
	require.NoError(t, err)
	assert.Equal(t, "UInt16", m["pid"])
	assert.Equal(t, 2, calls)
}

func TestSchemaCacheConcurrentSingleFetch(t *testing.T) {
	cache := NewSchemaCache()
	var mu sync.Mutex
	calls := 0
	fetch := func(ctx context.Context, table string) (map[string]string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return map[string]string{"pid": "UInt16"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrFetch(context.Background(), "temp", fetch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}
