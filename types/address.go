// Package types holds the data model shared by the journal, the
// wallet-state, the block store and the inventory reconciler: wallets,
// stored blocks/transactions, and the small value types that travel
// between them.
package types

import "bytes"

// Address is the canonical identifier of a wallet: an opaque byte
// string. Equality and ordering are over the raw, unchecksummed bytes
// only — no base58/base32 rendering is implied by comparison.
type Address []byte

// Equal reports whether a and b name the same wallet.
func (a Address) Equal(b Address) bool {
	return bytes.Equal(a, b)
}

// Compare orders addresses by their raw bytes, used by the legacy
// (pre-v10) affected-wallets sort.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a, b)
}

// String renders the address as a lowercase hex string. It is used for
// logging and as the in-memory map key for wallets and signers; it is
// not used as an on-disk persistence key.
func (a Address) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, len(a)*2)
	for i, c := range a {
		buf[i*2] = hextable[c>>4]
		buf[i*2+1] = hextable[c&0x0f]
	}
	return string(buf)
}

// Clone returns an independent copy of the address bytes.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	out := make(Address, len(a))
	copy(out, a)
	return out
}
