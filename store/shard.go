package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mezonai/mmn/logx"
)

const superBlockFileName = "superblocks.dat"

// shardFor computes the shard number a block belongs to: the largest
// multiple of maxPerDB not exceeding n.
func shardFor(n, maxPerDB uint64) uint64 {
	return (n / maxPerDB) * maxPerDB
}

func shardPath(baseDir string, shard uint64) string {
	return filepath.Join(baseDir, "0000", fmt.Sprintf("%d.dat", shard))
}

func superBlockPath(baseDir string) string {
	return filepath.Join(baseDir, "0000", superBlockFileName)
}

// Store is the sharded block-addressable persistent store: one SQLite
// file per block-number range plus a dedicated super-block side
// database. It holds two independent locks — shardMu for the active
// shard connection, superMu for the side database — acquired only in
// the fixed order super-block lock then shard lock, as InsertBlock
// does.
type Store struct {
	baseDir        string
	maxPerDB       uint64
	archival       bool
	redactedWindow uint64

	shardMu    sync.Mutex
	activeConn *sql.DB
	activeNum  uint64
	tip        uint64

	cache *shardCache

	superMu   sync.Mutex
	superConn *sql.DB

	running bool
}

// Config bundles the store's tunables, matching config.StoreConfig.
type Config struct {
	BaseDir          string
	MaxBlocksPerDB   uint64
	ShardCacheCap    int
	ShardIdleSeconds int
	Archival         bool
	RedactedWindow   uint64
	VacuumOnStartup  bool
}

// Open performs the store's startup sequence: clean stray WAL files,
// open the super-block side database, optionally VACUUM every shard,
// then seek to the latest shard and cache its tip.
func Open(cfg Config) (*Store, error) {
	if cfg.MaxBlocksPerDB == 0 {
		return nil, fmt.Errorf("max_blocks_per_db must be > 0")
	}
	shardDir := filepath.Join(cfg.BaseDir, "0000")
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard directory: %w", err)
	}
	if err := cleanStrayWAL(shardDir); err != nil {
		return nil, err
	}

	superConn, err := openSQLite(superBlockPath(cfg.BaseDir))
	if err != nil {
		return nil, fmt.Errorf("open super-block database: %w", err)
	}
	if err := migrateSuperBlockDB(superConn); err != nil {
		return nil, err
	}

	s := &Store{
		baseDir:        cfg.BaseDir,
		maxPerDB:       cfg.MaxBlocksPerDB,
		archival:       cfg.Archival,
		redactedWindow: cfg.RedactedWindow,
		cache:          newShardCacheFromConfig(cfg),
		superConn:      superConn,
		running:        true,
	}

	if cfg.VacuumOnStartup {
		if err := s.vacuumAllShards(); err != nil {
			logx.Error("STORE", "vacuum on startup failed:", err)
		}
	}

	if err := s.seekLatest(); err != nil {
		return nil, err
	}

	return s, nil
}

func newShardCacheFromConfig(cfg Config) *shardCache {
	idleSeconds := cfg.ShardIdleSeconds
	if idleSeconds <= 0 {
		idleSeconds = 60
	}
	cap := cfg.ShardCacheCap
	if cap <= 0 {
		cap = 50
	}
	return newShardCache(cap, time.Duration(idleSeconds)*time.Second)
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // one writer at a time per shard, per the concurrency model
	return db, nil
}

// cleanStrayWAL deletes stray write-ahead files left over from an
// unclean shutdown: *.dat-shm and *.dat-wal.
func cleanStrayWAL(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read shard directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if hasSuffixAny(name, ".dat-shm", ".dat-wal") {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				logx.Error("STORE", "failed to remove stray wal file", name, "error:", err)
			}
		}
	}
	return nil
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}

// seek opens (or reuses) the connection for the shard containing
// block n, and remembers it as the active connection under
// shardMu — the "currently-seeked shard" later reads fall back to.
func (s *Store) seek(n uint64) (*sql.DB, error) {
	if !s.running {
		return nil, fmt.Errorf("store is shutting down")
	}
	shard := shardFor(n, s.maxPerDB)

	s.shardMu.Lock()
	defer s.shardMu.Unlock()

	if s.activeConn != nil && s.activeNum == shard {
		return s.activeConn, nil
	}

	path := shardPath(s.baseDir, shard)
	db, err := s.cache.getOrOpen(path, func(p string) (*sql.DB, error) {
		conn, err := openSQLite(p)
		if err != nil {
			return nil, err
		}
		if err := migrateShard(conn); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("seek shard %d: %w", shard, err)
	}
	s.activeConn = db
	s.activeNum = shard
	return db, nil
}

// seekLatest probes shard boundaries 0, MAX, 2*MAX, ... for file
// existence until a gap is found, seeks to the last existing shard,
// and caches MAX(blockNum) as the tip.
func (s *Store) seekLatest() error {
	var last uint64
	found := false
	for shard := uint64(0); ; shard += s.maxPerDB {
		if _, err := os.Stat(shardPath(s.baseDir, shard)); err != nil {
			break
		}
		last = shard
		found = true
	}
	if !found {
		s.tip = 0
		return nil
	}

	db, err := s.seek(last)
	if err != nil {
		return err
	}
	var tip sql.NullInt64
	if err := db.QueryRow("SELECT MAX(blockNum) FROM blocks;").Scan(&tip); err != nil {
		return fmt.Errorf("query tip of shard %d: %w", last, err)
	}
	if tip.Valid {
		s.tip = uint64(tip.Int64)
	}
	return nil
}

// Tip returns the highest block number currently in local storage.
func (s *Store) Tip() uint64 {
	s.shardMu.Lock()
	defer s.shardMu.Unlock()
	return s.tip
}

func (s *Store) vacuumAllShards() error {
	shardDir := filepath.Join(s.baseDir, "0000")
	entries, err := os.ReadDir(shardDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if name == superBlockFileName || !hasSuffixAny(name, ".dat") {
			continue
		}
		db, err := openSQLite(filepath.Join(shardDir, name))
		if err != nil {
			logx.Error("STORE", "vacuum: failed to open", name, "error:", err)
			continue
		}
		if _, err := db.Exec("VACUUM;"); err != nil {
			logx.Error("STORE", "vacuum failed for", name, "error:", err)
		}
		db.Close()
	}
	return nil
}

// Close shuts the store down: new seek calls are refused, the active
// shard connection cache and the super-block connection are closed.
func (s *Store) Close() error {
	s.shardMu.Lock()
	s.running = false
	s.shardMu.Unlock()

	s.cache.closeAll()

	s.superMu.Lock()
	defer s.superMu.Unlock()
	return s.superConn.Close()
}
