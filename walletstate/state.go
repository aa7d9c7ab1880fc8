// Package walletstate is the in-memory wallet-state component: a
// keyed map of wallets with two tiers of mutators — public mutators
// used by transaction execution, and internal mutators used only by
// WSJ replay.
package walletstate

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	wsjerrors "github.com/mezonai/mmn/errors"
	"github.com/mezonai/mmn/logx"
	"github.com/mezonai/mmn/types"
	"github.com/mezonai/mmn/wsj"
)

// State holds all wallets known to this node. An exclusive lock is
// held for the entire duration of applying or reverting a WSJ
// transaction, per the concurrency model — callers coordinate that
// with WithExclusive.
type State struct {
	mu      sync.RWMutex
	wallets map[string]*types.Wallet
}

// New returns an empty wallet-state.
func New() *State {
	return &State{wallets: make(map[string]*types.Wallet)}
}

// WithExclusive holds the wallet-state's exclusive lock for the whole
// call and passes fn a WalletState view whose mutators operate
// directly against the already-held lock. fn must reach the wallets
// only through that view — e.g. txn.Apply(ws)/txn.Revert(ws) — never
// through the public s.*Internal methods, which lock s.mu themselves
// and would deadlock trying to re-acquire it here.
func (s *State) WithExclusive(fn func(ws wsj.WalletState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(lockedView{s})
}

// lockedView adapts State's unlocked *Locked helpers to the
// wsj.WalletState interface. It must only be handed to callers that
// already hold s.mu, which is exactly what WithExclusive guarantees.
type lockedView struct{ s *State }

func (v lockedView) SetBalanceInternal(addr types.Address, balance decimal.Decimal, revert bool) bool {
	return v.s.setBalanceLocked(addr, balance, revert)
}

func (v lockedView) AddAllowedSignerInternal(addr, signer types.Address, adding, adjustSigners, revert bool) bool {
	return v.s.addAllowedSignerLocked(addr, signer, adding, adjustSigners, revert)
}

func (v lockedView) SetRequiredSignaturesInternal(addr types.Address, count uint8) bool {
	return v.s.setRequiredSignaturesLocked(addr, count)
}

func (v lockedView) SetPubkeyInternal(addr types.Address, pubkey []byte, revert bool) bool {
	return v.s.setPubkeyLocked(addr, pubkey, revert)
}

func (v lockedView) SetUserDataInternal(addr types.Address, newData, oldForValidation []byte) bool {
	return v.s.setUserDataLocked(addr, newData, oldForValidation)
}

func (v lockedView) RemoveWalletInternal(addr types.Address) bool {
	return v.s.removeWalletLocked(addr)
}

func (v lockedView) SetWalletInternal(addr types.Address, w *types.Wallet) bool {
	return v.s.setWalletLocked(addr, w)
}

func (s *State) get(addr types.Address) (*types.Wallet, bool) {
	w, ok := s.wallets[addr.String()]
	return w, ok
}

// Get returns the wallet at addr, or nil if it does not exist.
func (s *State) Get(addr types.Address) *types.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.get(addr)
	if !ok {
		return nil
	}
	return w
}

// GetAll returns every wallet currently held, for node-operator
// tooling and tests — never called from WSJ replay.
func (s *State) GetAll() []*types.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	return out
}

// Prune removes every wallet satisfying the prunable invariant from
// the data model. Opt-in, never invoked by WSJ replay itself.
func (s *State) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, w := range s.wallets {
		if w.Prunable() {
			delete(s.wallets, k)
			removed++
		}
	}
	return removed
}

// ---- Public mutators ----
//
// Each public mutator constructs the matching WSJ entry, appends it to
// txn, and then calls the corresponding internal mutator: entry first,
// state second, so a caller that sees the internal mutator fail can
// roll the journal back via txn.Revert.

// CreateWallet creates a new empty wallet at addr, recording a Create
// entry. Fails if the wallet already exists.
func (s *State) CreateWallet(addr types.Address, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(addr); ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountExists, "wallet already exists", addr.String())
	}
	txn.Append(wsj.NewCreateEntry(addr))
	s.wallets[addr.String()] = types.NewWallet(addr)
	return nil
}

// AdjustBalance sets addr's balance to newBalance, recording a Balance
// entry captured against the current balance.
func (s *State) AdjustBalance(addr types.Address, newBalance decimal.Decimal, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.get(addr)
	if !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewBalanceEntry(addr, w.Balance, newBalance)
	txn.Append(entry)
	if !s.setBalanceLocked(addr, newBalance, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set_balance_internal failed", addr.String())
	}
	return nil
}

// AddSigner adds signer to addr's allowed-signer set.
func (s *State) AddSigner(addr, signer types.Address, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(addr); !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewAllowedSignerEntry(addr, signer, true, false)
	txn.Append(entry)
	if !s.addAllowedSignerLocked(addr, signer, true, false, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "add allowed signer failed", addr.String())
	}
	return nil
}

// RemoveSigner removes signer from addr's allowed-signer set,
// optionally decrementing required_signatures.
func (s *State) RemoveSigner(addr, signer types.Address, adjustSigners bool, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(addr); !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewAllowedSignerEntry(addr, signer, false, adjustSigners)
	txn.Append(entry)
	if !s.addAllowedSignerLocked(addr, signer, false, adjustSigners, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "remove allowed signer failed", addr.String())
	}
	return nil
}

// SetRequiredSignatures sets addr's required_signatures count.
func (s *State) SetRequiredSignatures(addr types.Address, count uint8, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.get(addr)
	if !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewRequiredSignaturesEntry(addr, w.RequiredSignatures, count)
	txn.Append(entry)
	if !s.setRequiredSignaturesLocked(addr, count) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set required signatures failed", addr.String())
	}
	return nil
}

// SetPubkey sets addr's public key.
func (s *State) SetPubkey(addr types.Address, pubkey []byte, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(addr); !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewPubkeyEntry(addr, pubkey)
	txn.Append(entry)
	if !s.setPubkeyLocked(addr, pubkey, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set pubkey failed", addr.String())
	}
	return nil
}

// SetUserData sets addr's opaque data blob, guarding that the current
// value equals old.
func (s *State) SetUserData(addr types.Address, newData []byte, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.get(addr)
	if !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewDataEntry(addr, w.UserData, newData)
	txn.Append(entry)
	if !s.setUserDataLocked(addr, newData, w.UserData) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeDivergentState, "current data does not match old_data", addr.String())
	}
	return nil
}

// DestroyWallet removes addr's wallet entirely, capturing a full
// snapshot for reversal.
func (s *State) DestroyWallet(addr types.Address, txn *wsj.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.get(addr)
	if !ok {
		return wsjerrors.NewWithTarget(wsjerrors.CodeAccountNotFound, "wallet does not exist", addr.String())
	}
	entry := wsj.NewDestroyEntry(addr, w)
	txn.Append(entry)
	if !s.removeWalletLocked(addr) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "remove wallet failed", addr.String())
	}
	return nil
}

// ---- Internal mutators (WSJ replay only) ----
//
// Each returns a plain success flag; a false return is a corruption
// signal, not an ordinary error.

func (s *State) SetBalanceInternal(addr types.Address, balance decimal.Decimal, revert bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setBalanceLocked(addr, balance, revert)
}

func (s *State) setBalanceLocked(addr types.Address, balance decimal.Decimal, revert bool) bool {
	w, ok := s.get(addr)
	if !ok {
		logx.Error("WALLETSTATE", fmt.Sprintf("set_balance_internal(revert=%v): wallet %s not found", revert, addr))
		return false
	}
	w.Balance = balance
	return true
}

func (s *State) AddAllowedSignerInternal(addr, signer types.Address, adding, adjustSigners, revert bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAllowedSignerLocked(addr, signer, adding, adjustSigners, revert)
}

// addAllowedSignerLocked adds or removes signer from addr's
// allowed-signer set. A forward remove with adjustSigners decrements
// required_signatures; reverting that remove (adding back with revert
// and adjustSigners both set) re-increments it symmetrically, so the
// count returns to its pre-removal value.
func (s *State) addAllowedSignerLocked(addr, signer types.Address, adding, adjustSigners, revert bool) bool {
	w, ok := s.get(addr)
	if !ok {
		logx.Error("WALLETSTATE", fmt.Sprintf("add_allowed_signer_internal: wallet %s not found", addr))
		return false
	}
	if w.AllowedSigners == nil {
		w.AllowedSigners = make(map[string]types.Address)
	}
	if adding {
		w.AllowedSigners[signer.String()] = signer.Clone()
		if revert && adjustSigners {
			w.RequiredSignatures++
		}
		return true
	}
	delete(w.AllowedSigners, signer.String())
	if adjustSigners && w.RequiredSignatures > 1 {
		w.RequiredSignatures--
	}
	return true
}

func (s *State) SetRequiredSignaturesInternal(addr types.Address, count uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRequiredSignaturesLocked(addr, count)
}

func (s *State) setRequiredSignaturesLocked(addr types.Address, count uint8) bool {
	w, ok := s.get(addr)
	if !ok {
		logx.Error("WALLETSTATE", fmt.Sprintf("set_required_signatures_internal: wallet %s not found", addr))
		return false
	}
	w.RequiredSignatures = count
	return true
}

func (s *State) SetPubkeyInternal(addr types.Address, pubkey []byte, revert bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPubkeyLocked(addr, pubkey, revert)
}

func (s *State) setPubkeyLocked(addr types.Address, pubkey []byte, revert bool) bool {
	w, ok := s.get(addr)
	if !ok {
		logx.Error("WALLETSTATE", fmt.Sprintf("set_pubkey_internal(revert=%v): wallet %s not found", revert, addr))
		return false
	}
	w.PublicKey = pubkey
	return true
}

func (s *State) SetUserDataInternal(addr types.Address, newData, oldForValidation []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setUserDataLocked(addr, newData, oldForValidation)
}

func (s *State) setUserDataLocked(addr types.Address, newData, oldForValidation []byte) bool {
	w, ok := s.get(addr)
	if !ok {
		logx.Error("WALLETSTATE", fmt.Sprintf("set_user_data_internal: wallet %s not found", addr))
		return false
	}
	if !bytesEqual(w.UserData, oldForValidation) {
		logx.Error("WALLETSTATE", fmt.Sprintf("set_user_data_internal: current data diverges from expected old for %s", addr))
		return false
	}
	w.UserData = newData
	return true
}

func (s *State) RemoveWalletInternal(addr types.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeWalletLocked(addr)
}

func (s *State) removeWalletLocked(addr types.Address) bool {
	if _, ok := s.get(addr); !ok {
		logx.Error("WALLETSTATE", fmt.Sprintf("remove_wallet_internal: wallet %s not found", addr))
		return false
	}
	delete(s.wallets, addr.String())
	return true
}

func (s *State) SetWalletInternal(addr types.Address, w *types.Wallet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setWalletLocked(addr, w)
}

func (s *State) setWalletLocked(addr types.Address, w *types.Wallet) bool {
	if w == nil {
		return false
	}
	s.wallets[addr.String()] = w.Clone()
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
