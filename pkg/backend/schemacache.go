// pkg/backend/schemacache.go
package backend

import (
	"context"
	"sync"
)

// SchemaCache memoizes warehouse column-type mappings per table for the
// duration of a run. Entries are populated lazily on first reference and
// never refreshed, so a table altered mid-run is served stale — an
// accepted limitation.
//
// The fetch runs under the write lock: concurrent folder processing can
// never race two metadata queries for the same table, and later callers
// observe the first writer's result.
type SchemaCache struct {
	mu     sync.RWMutex
	tables map[string]map[string]string
}

// NewSchemaCache returns an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{tables: make(map[string]map[string]string)}
}

// Get returns the cached mapping for a table, if present.
func (c *SchemaCache) Get(table string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.tables[table]
	return m, ok
}

// GetOrFetch returns the cached mapping for a table, calling fetch at most
// once per table per run to populate it. A failed fetch is not cached.
func (c *SchemaCache) GetOrFetch(
	ctx context.Context,
	table string,
	fetch func(ctx context.Context, table string) (map[string]string, error),
) (map[string]string, error) {
	if m, ok := c.Get(table); ok {
		return m, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.tables[table]; ok {
		return m, nil
	}

	m, err := fetch(ctx, table)
	if err != nil {
		return nil, err
	}
	c.tables[table] = m
	return m, nil
}

// Len returns the number of cached tables.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
