package sheets

import (
	"time"

	"scrutin/internal/schema"
)

type cacheKey struct {
	table schema.Table
	scope string
}

type cacheEntry struct {
	rows       []Row
	expires    time.Time
	generation uint64
}

func (c *Client) cached(key cacheKey) ([]Row, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[key.table]
	entry, ok := c.cache[key]
	if !ok || entry.generation != gen || !c.now().Before(entry.expires) {
		return nil, gen, false
	}
	return cloneRows(entry.rows), gen, true
}

// store caches rows unless a write bumped the table generation after the
// read started.
func (c *Client) store(key cacheKey, gen uint64, rows []Row) {
	if c.cfg.CacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key.table] != gen {
		return
	}
	c.cache[key] = cacheEntry{rows: rows, expires: c.now().Add(c.cfg.CacheTTL), generation: gen}
}

// Invalidate drops every cached read of the given tables.
func (c *Client) Invalidate(tables ...schema.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, table := range tables {
		c.generations[table]++
		for key := range c.cache {
			if key.table == table {
				delete(c.cache, key)
			}
		}
	}
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = Row{Handle: row.Handle, Values: row.Values.Clone()}
	}
	return out
}
