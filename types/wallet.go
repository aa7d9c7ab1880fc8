package types

import (
	"github.com/shopspring/decimal"

	wsjerrors "github.com/mezonai/mmn/errors"
)

// Wallet is the wallet-state component's unit of storage: an address,
// its balance, an optional multisig configuration and an optional
// opaque data blob.
type Wallet struct {
	ID                 Address
	Balance            decimal.Decimal
	PublicKey          []byte // nil means absent
	AllowedSigners     map[string]Address
	RequiredSignatures uint8
	UserData           []byte // nil means absent
}

// NewWallet returns an empty wallet at addr with a zero balance and no
// multisig configuration, mirroring what the WSJ Create entry expects
// to already exist before it is applied.
func NewWallet(addr Address) *Wallet {
	return &Wallet{
		ID:                 addr.Clone(),
		Balance:            decimal.Zero,
		AllowedSigners:     make(map[string]Address),
		RequiredSignatures: 1,
	}
}

// Clone returns a deep copy, used when the WSJ needs an immutable
// snapshot for a Destroy entry.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	cp := &Wallet{
		ID:                 w.ID.Clone(),
		Balance:            w.Balance,
		RequiredSignatures: w.RequiredSignatures,
	}
	if w.PublicKey != nil {
		cp.PublicKey = append([]byte(nil), w.PublicKey...)
	}
	if w.UserData != nil {
		cp.UserData = append([]byte(nil), w.UserData...)
	}
	if w.AllowedSigners != nil {
		cp.AllowedSigners = make(map[string]Address, len(w.AllowedSigners))
		for k, v := range w.AllowedSigners {
			cp.AllowedSigners[k] = v.Clone()
		}
	}
	return cp
}

// Validate checks the invariants from the data model: at least one
// required signature, and required signatures bounded by the signer
// set plus the wallet's own key.
func (w *Wallet) Validate() error {
	if w.RequiredSignatures < 1 {
		return wsjerrors.NewWithTarget(wsjerrors.CodeInvalidWallet, "required_signatures must be >= 1", w.ID.String())
	}
	if int(w.RequiredSignatures) > len(w.AllowedSigners)+1 {
		return wsjerrors.NewWithTarget(wsjerrors.CodeInvalidWallet, "required_signatures exceeds signer set + owner key", w.ID.String())
	}
	return nil
}

// Prunable reports whether the wallet may be dropped from storage: a
// zero balance, no multisig configuration beyond the default single
// signer, no data, and no public key.
func (w *Wallet) Prunable() bool {
	return w.Balance.IsZero() &&
		len(w.AllowedSigners) == 0 &&
		w.RequiredSignatures <= 1 &&
		len(w.PublicKey) == 0 &&
		len(w.UserData) == 0
}

// HasSigner reports whether signer is in the wallet's allowed-signer
// set.
func (w *Wallet) HasSigner(signer Address) bool {
	if w.AllowedSigners == nil {
		return false
	}
	_, ok := w.AllowedSigners[signer.String()]
	return ok
}
