// Package config loads the store and journal tuning parameters used by
// the node from an .ini file, following the same section-per-concern
// layout the rest of the fleet uses for PoH/mempool/validator config.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// StoreConfig controls shard sizing and the connection cache in the
// block store.
type StoreConfig struct {
	BaseDir          string `ini:"base_dir"`
	MaxBlocksPerDB   uint64 `ini:"max_blocks_per_db"`
	ShardCacheCap    int    `ini:"shard_cache_cap"`
	ShardIdleSeconds int    `ini:"shard_idle_seconds"`
	Archival         bool   `ini:"archival"`
	RedactedWindow   uint64 `ini:"redacted_window"`
	VacuumOnStartup  bool   `ini:"vacuum_on_startup"`
}

// WSJConfig holds journal-wide settings that depend on block version,
// such as the affected-wallets version boundary. The wsj package does
// not read it: Transaction.AffectedWallets uses the
// wsj.LegacyAffectedWalletsVersion constant.
type WSJConfig struct {
	BlockVersionFloorLegacy uint32 `ini:"block_version_floor_legacy"`
}

// NodeConfig is the top-level parsed configuration file.
type NodeConfig struct {
	Store StoreConfig
	WSJ   WSJConfig
}

// DefaultStoreConfig returns the store's baseline tuning: a 100,000
// block shard size, a 50-connection cache cap, and a 60s idle
// eviction window.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BaseDir:          "./data/blocks",
		MaxBlocksPerDB:   100000,
		ShardCacheCap:    50,
		ShardIdleSeconds: 60,
		Archival:         false,
		RedactedWindow:   10000,
		VacuumOnStartup:  false,
	}
}

// DefaultWSJConfig returns the affected-wallets version boundary:
// legacy below 10, ordered-dedup from 10 onward.
func DefaultWSJConfig() WSJConfig {
	return WSJConfig{BlockVersionFloorLegacy: 10}
}

// Load reads store.ini-shaped config from path, falling back to
// defaults for any field left unset in the file.
func Load(path string) (*NodeConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	storeCfg := DefaultStoreConfig()
	if sec, err := cfg.GetSection("store"); err == nil {
		if err := sec.MapTo(&storeCfg); err != nil {
			return nil, fmt.Errorf("parse [store] section: %w", err)
		}
	}

	wsjCfg := DefaultWSJConfig()
	if sec, err := cfg.GetSection("wsj"); err == nil {
		if err := sec.MapTo(&wsjCfg); err != nil {
			return nil, fmt.Errorf("parse [wsj] section: %w", err)
		}
	}

	return &NodeConfig{Store: storeCfg, WSJ: wsjCfg}, nil
}
