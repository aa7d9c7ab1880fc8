package wsj

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn/types"
)

func TestTransactionApplyStopsAtFirstFailure(t *testing.T) {
	ws := newFakeWalletState()
	ws.wallets[addr(1).String()] = types.NewWallet(addr(1))

	txn := NewTransaction(1)
	txn.Append(NewBalanceEntry(addr(1), decimal.Zero, decimal.NewFromInt(10)))
	// addr(2) was never created; the internal mutator fails.
	txn.Append(NewBalanceEntry(addr(2), decimal.Zero, decimal.NewFromInt(5)))
	txn.Append(NewBalanceEntry(addr(1), decimal.NewFromInt(10), decimal.NewFromInt(20)))

	ok := txn.Apply(ws)
	assert.False(t, ok)
	assert.Equal(t, decimal.NewFromInt(10).String(), ws.wallets[addr(1).String()].Balance.String())
}

func TestTransactionRevertRunsReverseOrder(t *testing.T) {
	ws := newFakeWalletState()
	ws.wallets[addr(1).String()] = types.NewWallet(addr(1))

	txn := NewTransaction(1)
	txn.Append(NewBalanceEntry(addr(1), decimal.Zero, decimal.NewFromInt(10)))
	txn.Append(NewBalanceEntry(addr(1), decimal.NewFromInt(10), decimal.NewFromInt(20)))

	require.True(t, txn.Apply(ws))
	assert.Equal(t, "20", ws.wallets[addr(1).String()].Balance.String())

	ok := txn.Revert(ws)
	assert.True(t, ok)
	assert.Equal(t, "0", ws.wallets[addr(1).String()].Balance.String())
}

func TestAffectedWalletsLegacySortsAndDedups(t *testing.T) {
	txn := NewTransaction(1)
	txn.Append(NewBalanceEntry(addr(3), decimal.Zero, decimal.Zero))
	txn.Append(NewBalanceEntry(addr(1), decimal.Zero, decimal.Zero))
	txn.Append(NewBalanceEntry(addr(3), decimal.Zero, decimal.Zero))
	txn.Append(NewBalanceEntry(addr(2), decimal.Zero, decimal.Zero))

	got := txn.AffectedWallets(LegacyAffectedWalletsVersion - 1)
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(addr(1)))
	assert.True(t, got[1].Equal(addr(2)))
	assert.True(t, got[2].Equal(addr(3)))
}

func TestAffectedWalletsCurrentPreservesFirstOccurrenceOrder(t *testing.T) {
	txn := NewTransaction(1)
	txn.Append(NewBalanceEntry(addr(3), decimal.Zero, decimal.Zero))
	txn.Append(NewBalanceEntry(addr(1), decimal.Zero, decimal.Zero))
	txn.Append(NewBalanceEntry(addr(3), decimal.Zero, decimal.Zero))
	txn.Append(NewBalanceEntry(addr(2), decimal.Zero, decimal.Zero))

	got := txn.AffectedWallets(LegacyAffectedWalletsVersion)
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(addr(3)))
	assert.True(t, got[1].Equal(addr(1)))
	assert.True(t, got[2].Equal(addr(2)))
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	txn := NewTransaction(42)
	txn.Append(NewBalanceEntry(addr(1), decimal.NewFromInt(1), decimal.NewFromInt(2)))
	txn.Append(NewPubkeyEntry(addr(1), []byte{5, 6}))
	txn.Append(NewDataEntry(addr(1), []byte("a"), []byte("b")))

	got, err := DecodeTransaction(txn.Bytes())
	require.NoError(t, err)
	assert.Equal(t, txn.Number, got.Number)

	wantEntries := txn.Entries()
	gotEntries := got.Entries()
	require.Len(t, gotEntries, len(wantEntries))
	for i := range wantEntries {
		assert.Equal(t, wantEntries[i].Tag(), gotEntries[i].Tag())
		assert.Equal(t, encodeEntry(wantEntries[i]), encodeEntry(gotEntries[i]))
	}
}
