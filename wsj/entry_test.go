package wsj

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn/types"
)

func addr(b byte) types.Address {
	return types.Address{b, b, b, b}
}

func encodeDecodeRoundTrip(t *testing.T, e Entry) Entry {
	t.Helper()
	raw := encodeEntry(e)
	got, err := DecodeEntry(bytes.NewReader(raw))
	require.NoError(t, err)
	return got
}

func TestBalanceEntryRoundTrip(t *testing.T) {
	e := NewBalanceEntry(addr(1), decimal.NewFromInt(100), decimal.NewFromInt(55))
	got, ok := encodeDecodeRoundTrip(t, e).(*BalanceEntry)
	require.True(t, ok)
	assert.True(t, got.target.Equal(e.target))
	assert.True(t, got.OldBalance.Equal(e.OldBalance))
	assert.True(t, got.NewBalance.Equal(e.NewBalance))
}

func TestAllowedSignerEntryRoundTripAdding(t *testing.T) {
	e := NewAllowedSignerEntry(addr(1), addr(2), true, false)
	got, ok := encodeDecodeRoundTrip(t, e).(*AllowedSignerEntry)
	require.True(t, ok)
	assert.True(t, got.Adding)
	assert.True(t, got.Signer.Equal(e.Signer))
}

func TestAllowedSignerEntryRoundTripRemoving(t *testing.T) {
	e := NewAllowedSignerEntry(addr(1), addr(2), false, true)
	got, ok := encodeDecodeRoundTrip(t, e).(*AllowedSignerEntry)
	require.True(t, ok)
	assert.False(t, got.Adding)
	assert.True(t, got.AdjustSigners)
}

func TestRequiredSignaturesEntryRoundTrip(t *testing.T) {
	e := NewRequiredSignaturesEntry(addr(1), 2, 3)
	got, ok := encodeDecodeRoundTrip(t, e).(*RequiredSignaturesEntry)
	require.True(t, ok)
	assert.Equal(t, uint8(2), got.OldCount)
	assert.Equal(t, uint8(3), got.NewCount)
}

func TestPubkeyEntryRoundTrip(t *testing.T) {
	e := NewPubkeyEntry(addr(1), []byte{9, 9, 9})
	got, ok := encodeDecodeRoundTrip(t, e).(*PubkeyEntry)
	require.True(t, ok)
	assert.Equal(t, []byte{9, 9, 9}, got.Pubkey)
}

func TestDataEntryRoundTripDecodesByItsOwnTag(t *testing.T) {
	// Guards against the known source defect where the decoder peeked
	// the tag as Pubkey; this must decode as Data (tag 5).
	e := NewDataEntry(addr(1), []byte("old"), []byte("new"))
	got, ok := encodeDecodeRoundTrip(t, e).(*DataEntry)
	require.True(t, ok)
	assert.Equal(t, int32(TagData), got.Tag())
	assert.Equal(t, []byte("old"), got.OldData)
	assert.Equal(t, []byte("new"), got.NewData)
}

func TestCreateEntryApplyIsNoOp(t *testing.T) {
	e := NewCreateEntry(addr(1))
	ws := newFakeWalletState()
	assert.NoError(t, e.Apply(ws))
	assert.Empty(t, ws.calls)
}

func TestDestroyEntryRoundTrip(t *testing.T) {
	w := &types.Wallet{
		ID:                 addr(1),
		Balance:            decimal.NewFromInt(42),
		PublicKey:          []byte{1, 2},
		AllowedSigners:     map[string]types.Address{addr(2).String(): addr(2)},
		RequiredSignatures: 2,
		UserData:           []byte("hello"),
	}
	e := NewDestroyEntry(addr(1), w)
	got, ok := encodeDecodeRoundTrip(t, e).(*DestroyEntry)
	require.True(t, ok)
	assert.True(t, got.Snapshot.Balance.Equal(w.Balance))
	assert.Equal(t, w.PublicKey, got.Snapshot.PublicKey)
	assert.Equal(t, w.RequiredSignatures, got.Snapshot.RequiredSignatures)
	assert.Equal(t, w.UserData, got.Snapshot.UserData)
}

func TestChecksumIsDeterministic(t *testing.T) {
	e1 := NewBalanceEntry(addr(1), decimal.NewFromInt(1), decimal.NewFromInt(2))
	e2 := NewBalanceEntry(addr(1), decimal.NewFromInt(1), decimal.NewFromInt(2))
	assert.Equal(t, e1.Checksum(), e2.Checksum())

	e3 := NewBalanceEntry(addr(1), decimal.NewFromInt(1), decimal.NewFromInt(3))
	assert.NotEqual(t, e1.Checksum(), e3.Checksum())
}

func TestDecodeEntryUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	writeI32(&buf, 99)
	_, err := DecodeEntry(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}

// fakeWalletState records calls made against it, for tests that only
// need to observe whether a mutator fired.
type fakeWalletState struct {
	calls   []string
	wallets map[string]*types.Wallet
}

func newFakeWalletState() *fakeWalletState {
	return &fakeWalletState{wallets: make(map[string]*types.Wallet)}
}

func (f *fakeWalletState) SetBalanceInternal(addr types.Address, balance decimal.Decimal, revert bool) bool {
	f.calls = append(f.calls, "SetBalanceInternal")
	w, ok := f.wallets[addr.String()]
	if !ok {
		return false
	}
	w.Balance = balance
	return true
}

func (f *fakeWalletState) AddAllowedSignerInternal(addr, signer types.Address, adding, adjustSigners, revert bool) bool {
	f.calls = append(f.calls, "AddAllowedSignerInternal")
	return true
}

func (f *fakeWalletState) SetRequiredSignaturesInternal(addr types.Address, count uint8) bool {
	f.calls = append(f.calls, "SetRequiredSignaturesInternal")
	return true
}

func (f *fakeWalletState) SetPubkeyInternal(addr types.Address, pubkey []byte, revert bool) bool {
	f.calls = append(f.calls, "SetPubkeyInternal")
	return true
}

func (f *fakeWalletState) SetUserDataInternal(addr types.Address, newData, oldForValidation []byte) bool {
	f.calls = append(f.calls, "SetUserDataInternal")
	return true
}

func (f *fakeWalletState) RemoveWalletInternal(addr types.Address) bool {
	f.calls = append(f.calls, "RemoveWalletInternal")
	delete(f.wallets, addr.String())
	return true
}

func (f *fakeWalletState) SetWalletInternal(addr types.Address, w *types.Wallet) bool {
	f.calls = append(f.calls, "SetWalletInternal")
	f.wallets[addr.String()] = w
	return true
}
