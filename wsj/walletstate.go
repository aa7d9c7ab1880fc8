package wsj

import (
	"github.com/shopspring/decimal"

	"github.com/mezonai/mmn/types"
)

// WalletState is the subset of the wallet-state component the journal
// is allowed to touch during apply/revert: the internal mutator tier.
// Public mutators live on the concrete walletstate.State type and are
// never called from here — only entry replay reaches these methods,
// which is why they are all named "*Internal" and return a plain
// success flag rather than an error: a false return is a corruption
// signal, not an ordinary failure.
type WalletState interface {
	SetBalanceInternal(addr types.Address, balance decimal.Decimal, revert bool) bool
	AddAllowedSignerInternal(addr, signer types.Address, adding, adjustSigners, revert bool) bool
	SetRequiredSignaturesInternal(addr types.Address, count uint8) bool
	SetPubkeyInternal(addr types.Address, pubkey []byte, revert bool) bool
	SetUserDataInternal(addr types.Address, newData, oldForValidation []byte) bool
	RemoveWalletInternal(addr types.Address) bool
	SetWalletInternal(addr types.Address, w *types.Wallet) bool
}
