package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		BaseDir:          t.TempDir(),
		MaxBlocksPerDB:   1000,
		ShardCacheCap:    4,
		ShardIdleSeconds: 60,
		RedactedWindow:   2000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetBlockByNumber(t *testing.T) {
	s := openTestStore(t)

	b := &types.StoredBlock{
		Num:      42,
		Checksum: []byte("checksum-42"),
		Version:  1,
		TxIDs:    [][]byte{{0x01, 0x02}},
	}
	require.NoError(t, s.InsertBlock(b))

	got, err := s.GetBlockByNumber(42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.Checksum, got.Checksum)
	assert.Equal(t, b.TxIDs, got.TxIDs)
	assert.Equal(t, uint64(42), s.Tip())
}

func TestGetBlockByNumberAboveTipReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetBlockByNumber(500)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertAndGetTransactionByID(t *testing.T) {
	s := openTestStore(t)

	id := make([]byte, 10)
	id[0] = 0x00
	id[1] = 5 // block height 5, single-byte varint

	tx := &types.StoredTransaction{
		ID:      id,
		Type:    1,
		Amount:  decimal.NewFromInt(100),
		Fee:     decimal.NewFromInt(1),
		Applied: 5,
	}
	require.NoError(t, s.InsertTransaction(tx))

	got, err := s.GetTransactionByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(tx.Amount))
	assert.Equal(t, id, got.ID)
}

func TestStatsReportsCountsAndFingerprint(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertBlock(&types.StoredBlock{Num: 1}))
	require.NoError(t, s.InsertBlock(&types.StoredBlock{Num: 2}))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Tip)
	assert.NotEmpty(t, stats.Fingerprint)
	assert.Equal(t, int64(2), stats.ShardCounts[0])
}

func TestGetBlockByHashFallsBackAcrossShardBoundary(t *testing.T) {
	s := openTestStore(t)

	lower := &types.StoredBlock{Num: 999, Checksum: []byte("checksum-999")}
	upper := &types.StoredBlock{Num: 1000, Checksum: []byte("checksum-1000")}
	require.NoError(t, s.InsertBlock(lower))
	require.NoError(t, s.InsertBlock(upper))
	assert.Equal(t, uint64(1000), s.Tip())

	got, err := s.GetBlockByHash(lower.Checksum)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(999), got.Num)

	got, err = s.GetBlockByHash(upper.Checksum)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(1000), got.Num)

	got, err = s.GetBlockByHash([]byte("no-such-checksum"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveBlockRefusedWhenArchival(t *testing.T) {
	s, err := Open(Config{
		BaseDir:        t.TempDir(),
		MaxBlocksPerDB: 1000,
		Archival:       true,
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertBlock(&types.StoredBlock{Num: 1}))
	err = s.RemoveBlock(1)
	assert.Error(t, err)
}
