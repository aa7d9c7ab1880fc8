package walletstate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn/types"
	"github.com/mezonai/mmn/wsj"
)

func addr(b byte) types.Address {
	return types.Address{b, b, b, b}
}

// TestBalanceReversal is seed scenario 1: create A with 100, apply
// [100->40, 40->55], expect 55, revert, expect 100.
func TestBalanceReversal(t *testing.T) {
	s := New()
	setup := wsj.NewTransaction(0)
	require.NoError(t, s.CreateWallet(addr(1), setup))
	require.NoError(t, s.AdjustBalance(addr(1), decimal.NewFromInt(100), setup))

	txn := wsj.NewTransaction(1)
	require.NoError(t, s.AdjustBalance(addr(1), decimal.NewFromInt(40), txn))
	require.NoError(t, s.AdjustBalance(addr(1), decimal.NewFromInt(55), txn))

	assert.Equal(t, "55", s.Get(addr(1)).Balance.String())

	ok := txn.Revert(s)
	require.True(t, ok)
	assert.Equal(t, "100", s.Get(addr(1)).Balance.String())
}

// TestDestroyCreatePair is seed scenario 2.
func TestDestroyCreatePair(t *testing.T) {
	s := New()
	setup := wsj.NewTransaction(0)
	require.NoError(t, s.CreateWallet(addr(1), setup))
	require.NoError(t, s.AdjustBalance(addr(1), decimal.NewFromInt(5), setup))

	txn := wsj.NewTransaction(1)
	require.NoError(t, s.DestroyWallet(addr(1), txn))
	require.NoError(t, s.CreateWallet(addr(2), txn))
	require.NoError(t, s.AdjustBalance(addr(2), decimal.NewFromInt(10), txn))

	assert.Nil(t, s.Get(addr(1)))
	require.NotNil(t, s.Get(addr(2)))
	assert.Equal(t, "10", s.Get(addr(2)).Balance.String())

	ok := txn.Revert(s)
	require.True(t, ok)
	require.NotNil(t, s.Get(addr(1)))
	assert.Equal(t, "5", s.Get(addr(1)).Balance.String())
	assert.Nil(t, s.Get(addr(2)))
}

// TestDataEntryGuardsState is seed scenario 3: wallet has data X;
// Data(old=Y, new=Z) fails against the true old value; Data(old=X,
// new=Z) succeeds and reverts cleanly.
func TestDataEntryGuardsState(t *testing.T) {
	s := New()
	setup := wsj.NewTransaction(0)
	require.NoError(t, s.CreateWallet(addr(1), setup))
	require.NoError(t, s.SetUserData(addr(1), []byte("X"), setup))

	mismatched := wsj.NewDataEntry(addr(1), []byte("Y"), []byte("Z"))
	assert.Error(t, mismatched.Apply(s))
	assert.Equal(t, []byte("X"), s.Get(addr(1)).UserData)

	matched := wsj.NewDataEntry(addr(1), []byte("X"), []byte("Z"))
	require.NoError(t, matched.Apply(s))
	assert.Equal(t, []byte("Z"), s.Get(addr(1)).UserData)

	require.NoError(t, matched.Revert(s))
	assert.Equal(t, []byte("X"), s.Get(addr(1)).UserData)
}

// TestSignerAdjustment is seed scenario 4.
func TestSignerAdjustment(t *testing.T) {
	s := New()
	setup := wsj.NewTransaction(0)
	require.NoError(t, s.CreateWallet(addr(1), setup))
	require.NoError(t, s.AddSigner(addr(1), addr(2), setup))
	require.NoError(t, s.AddSigner(addr(1), addr(3), setup))
	require.NoError(t, s.AddSigner(addr(1), addr(4), setup))
	require.NoError(t, s.SetRequiredSignatures(addr(1), 2, setup))

	txn := wsj.NewTransaction(1)
	require.NoError(t, s.RemoveSigner(addr(1), addr(3), true, txn))

	w := s.Get(addr(1))
	assert.False(t, w.HasSigner(addr(3)))
	assert.True(t, w.HasSigner(addr(2)))
	assert.True(t, w.HasSigner(addr(4)))
	assert.Equal(t, uint8(1), w.RequiredSignatures)

	ok := txn.Revert(s)
	require.True(t, ok)
	w = s.Get(addr(1))
	assert.True(t, w.HasSigner(addr(2)))
	assert.True(t, w.HasSigner(addr(3)))
	assert.True(t, w.HasSigner(addr(4)))
	assert.Equal(t, uint8(2), w.RequiredSignatures)
}

func TestChecksumOverAffectedIsStableForSameWallets(t *testing.T) {
	s := New()
	txn := wsj.NewTransaction(1)
	require.NoError(t, s.CreateWallet(addr(1), txn))
	require.NoError(t, s.AdjustBalance(addr(1), decimal.NewFromInt(10), txn))

	c1 := s.ChecksumOverAffected(txn, 10)
	c2 := s.ChecksumOverAffected(txn, 10)
	assert.Equal(t, c1, c2)
}

func TestPruneRemovesEmptyWallets(t *testing.T) {
	s := New()
	txn := wsj.NewTransaction(1)
	require.NoError(t, s.CreateWallet(addr(1), txn))
	require.NoError(t, s.CreateWallet(addr(2), txn))
	require.NoError(t, s.AdjustBalance(addr(2), decimal.NewFromInt(1), txn))

	removed := s.Prune()
	assert.Equal(t, 1, removed)
	assert.Nil(t, s.Get(addr(1)))
	assert.NotNil(t, s.Get(addr(2)))
}
