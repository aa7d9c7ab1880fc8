package store

import (
	"database/sql"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/mezonai/mmn/logx"
)

// shardConn is a cached connection to one shard file plus the
// timestamp it was last touched, the unit the connection cache
// tracks for idle eviction.
type shardConn struct {
	db       *sql.DB
	lastUsed time.Time
}

// shardCache is the LRU-like connection cache: an eviction sweep runs
// on every access, closing everything idle beyond the configured
// window except the active shard, then trimming to the hard cap
// oldest-first if still over. hashicorp/golang-lru supplies the
// access-order bookkeeping (Keys() oldest-first); the idle sweep and
// "skip the active entry" rule are layered on top, since golang-lru's
// own eviction alone can't express either.
type shardCache struct {
	mu           sync.Mutex
	lru          *lru.Cache
	cap          int
	idleWindow   time.Duration
	activePath   string
}

func newShardCache(cap int, idleWindow time.Duration) *shardCache {
	l, _ := lru.New(cap * 2) // generous backing size; our own sweep enforces cap
	return &shardCache{lru: l, cap: cap, idleWindow: idleWindow}
}

// getOrOpen returns the cached connection for path, opening it via
// open if absent, and runs the eviction sweep before returning.
func (c *shardCache) getOrOpen(path string, open func(string) (*sql.DB, error)) (*sql.DB, error) {
	c.mu.Lock()
	c.activePath = path
	if v, ok := c.lru.Get(path); ok {
		sc := v.(*shardConn)
		sc.lastUsed = time.Now()
		c.lru.Add(path, sc)
		c.mu.Unlock()
		c.sweep()
		return sc.db, nil
	}
	c.mu.Unlock()

	db, err := open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(path, &shardConn{db: db, lastUsed: time.Now()})
	c.mu.Unlock()

	c.sweep()
	return db, nil
}

// sweep implements the two-step eviction policy: close every
// connection idle longer than idleWindow except the active one, then
// if the cache still exceeds cap, evict oldest-first, again skipping
// the active entry.
func (c *shardCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, key := range c.lru.Keys() {
		path := key.(string)
		if path == c.activePath {
			continue
		}
		v, ok := c.lru.Peek(path)
		if !ok {
			continue
		}
		sc := v.(*shardConn)
		if now.Sub(sc.lastUsed) > c.idleWindow {
			c.closeLocked(path, sc)
		}
	}

	for c.lru.Len() > c.cap {
		keys := c.lru.Keys()
		evicted := false
		for _, key := range keys {
			path := key.(string)
			if path == c.activePath {
				continue
			}
			v, ok := c.lru.Peek(path)
			if !ok {
				continue
			}
			c.closeLocked(path, v.(*shardConn))
			evicted = true
			break
		}
		if !evicted {
			break // everything left is the active entry; nothing more to trim
		}
	}
}

func (c *shardCache) closeLocked(path string, sc *shardConn) {
	if err := sc.db.Close(); err != nil {
		logx.Error("STORE", "failed to close shard connection", path, "error:", err)
	}
	c.lru.Remove(path)
}

// closeAll closes every cached connection, used at shutdown.
func (c *shardCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		path := key.(string)
		if v, ok := c.lru.Peek(path); ok {
			c.closeLocked(path, v.(*shardConn))
		}
	}
}
