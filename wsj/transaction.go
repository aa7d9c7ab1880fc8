package wsj

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/mezonai/mmn/logx"
	"github.com/mezonai/mmn/types"
)

// LegacyAffectedWalletsVersion is the block version boundary below
// which affected_wallets sorts and dedups its result instead of
// preserving first-occurrence order.
const LegacyAffectedWalletsVersion uint32 = 10

// Transaction is an ordered batch of entries plus a caller-assigned
// numeric ID. Apply runs entries forward; Revert runs them in reverse.
// The entry list is guarded by mu so append/apply/revert/affected
// wallets all serialize against each other, though callers are still
// expected to keep exactly one goroutine driving a given transaction
// at a time.
type Transaction struct {
	mu      sync.Mutex
	Number  uint64
	entries []Entry
}

// NewTransaction starts an empty WSJ transaction with the given
// caller-assigned number (typically the block number).
func NewTransaction(number uint64) *Transaction {
	return &Transaction{Number: number}
}

// Append adds an entry to the end of the transaction, preserving
// insertion order.
func (t *Transaction) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// Entries returns a snapshot of the transaction's entries in
// insertion order.
func (t *Transaction) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Apply replays entries forward. On the first failure it logs and
// returns false without reverting — the caller owns deciding whether
// to call Revert on the partially-applied transaction.
func (t *Transaction) Apply(ws WalletState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if err := e.Apply(ws); err != nil {
			logx.Error("WSJ", fmt.Sprintf("transaction %d: apply failed at entry %d (tag %d, target %s): %v",
				t.Number, i, e.Tag(), e.Target(), err))
			return false
		}
	}
	return true
}

// Revert replays entries in reverse insertion order. Individual
// failures are logged and skipped so the rest of the transaction still
// unwinds; Revert always returns true, per its best-effort contract.
func (t *Transaction) Revert(ws WalletState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if err := e.Revert(ws); err != nil {
			logx.Error("WSJ", fmt.Sprintf("transaction %d: revert failed at entry %d (tag %d, target %s): %v",
				t.Number, i, e.Tag(), e.Target(), err))
		}
	}
	return true
}

// AffectedWallets returns the distinct target wallets touched by this
// transaction. Two incompatible modes exist, selected by the block's
// declared version, because the result feeds wallet-state checksum
// computation and changing modes silently would change the checksum:
//
//   - legacy (version < 10): dedup, then sort by address bytes.
//   - current (version >= 10): dedup, preserving first-occurrence order.
func (t *Transaction) AffectedWallets(blockVersion uint32) []types.Address {
	t.mu.Lock()
	defer t.mu.Unlock()

	if blockVersion < LegacyAffectedWalletsVersion {
		return legacyAffectedWallets(t.entries)
	}
	return currentAffectedWallets(t.entries)
}

func legacyAffectedWallets(entries []Entry) []types.Address {
	seen := make(map[string]types.Address)
	for _, e := range entries {
		addr := e.Target()
		seen[addr.String()] = addr
	}
	out := make([]types.Address, 0, len(seen))
	for _, addr := range seen {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

func currentAffectedWallets(entries []Entry) []types.Address {
	seen := make(map[string]struct{}, len(entries))
	out := make([]types.Address, 0, len(entries))
	for _, e := range entries {
		addr := e.Target()
		key := addr.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// Bytes encodes the transaction as: u64 number | i32 entry_count |
// entries...
func (t *Transaction) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	var buf bytes.Buffer
	writeU64(&buf, t.Number)
	writeI32(&buf, int32(len(t.entries)))
	for _, e := range t.entries {
		writeI32(&buf, e.Tag())
		e.Encode(&buf)
	}
	return buf.Bytes()
}

// DecodeTransaction reverses Bytes, dispatching each entry by its
// peeked tag.
func DecodeTransaction(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	number, err := readU64(r)
	if err != nil {
		return nil, err
	}
	count, err := readI32(r)
	if err != nil {
		return nil, err
	}
	t := NewTransaction(number)
	for i := int32(0); i < count; i++ {
		e, err := DecodeEntry(r)
		if err != nil {
			return nil, err
		}
		t.entries = append(t.entries, e)
	}
	return t, nil
}
