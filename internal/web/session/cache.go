// Package session holds per-session server-side state: the most recent
// query result, kept so preview and download read the same materialized
// data without re-running the query.
package session

import (
	"sync"

	"github.com/pbelov/snowview/internal/warehouse"
)

// ResultCache maps a session id to its last successful query result.
// Each new success overwrites the previous entry; logout and the
// expired-session sweep drop entries.
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]*warehouse.Result
}

func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]*warehouse.Result)}
}

func (c *ResultCache) Put(sessionID string, r *warehouse.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[sessionID] = r
}

// Get returns the cached result for the session, or nil.
func (c *ResultCache) Get(sessionID string) *warehouse.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.results[sessionID]
}

func (c *ResultCache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, sessionID)
}

// Len reports the number of cached results, feeding the sessions gauge.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
