package types

import "github.com/shopspring/decimal"

// SuperBlockSegment references a prior applied block by number and
// checksum, part of the compacted view a super-block carries.
type SuperBlockSegment struct {
	Num      uint64
	Checksum []byte
}

// BlockSignature is a (pubkey, signature) pair carried on a stored
// block. Pubkey is nil when the signer is anonymous (rendered as the
// literal "0" on the wire, per the store's signature-column format).
type BlockSignature struct {
	PubKey    []byte
	Signature []byte
}

// signerKey identifies the signer a signature belongs to, used to
// de-duplicate signatures by signer on decode. It keys on the raw
// pubkey bytes rather than a derived address.
func (s BlockSignature) signerKey() string {
	return string(s.PubKey)
}

// StoredBlock is the persistent representation of an applied block, as
// written to and read from a shard.
type StoredBlock struct {
	Num                    uint64
	Checksum               []byte
	PrevChecksum           []byte
	WalletStateChecksum    []byte
	SigFreezeChecksum      []byte
	Difficulty             uint64
	PowField               []byte
	TxIDs                  [][]byte
	Signatures             []BlockSignature
	Timestamp              int64
	Version                uint32
	LastSuperBlockChecksum []byte // nil means none
	LastSuperBlockNum      uint64
	SuperBlockSegments     []SuperBlockSegment
	CompactedSigs          bool
	BlockProposer          []byte // nil means absent
}

// IsSuperBlock reports whether this block declares a reference to a
// prior super-block, which triggers a mirrored write to the
// super-block side database.
func (b *StoredBlock) IsSuperBlock() bool {
	return b.LastSuperBlockChecksum != nil
}

// DedupSignatures filters out signatures from a repeated signer,
// keeping the first occurrence, matching the store's decode-time
// convention.
func DedupSignatures(sigs []BlockSignature) []BlockSignature {
	seen := make(map[string]struct{}, len(sigs))
	out := make([]BlockSignature, 0, len(sigs))
	for _, s := range sigs {
		k := s.signerKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// StoredTransaction is the persistent representation of a transaction
// included in a block.
type StoredTransaction struct {
	ID           []byte
	Type         uint32
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	ToList       []AddressAmount
	FromList     []AddressAmount
	DataChecksum []byte // nil means absent
	Data         []byte // nil means absent; stored byte-reversed on disk
	BlockHeight  uint64
	Nonce        uint32
	Timestamp    int64
	Checksum     []byte
	Signature    []byte
	PubKey       []byte
	Applied      uint64
	Version      uint32
}

// AddressAmount is one entry of an ordered to_list/from_list map: an
// address paired with the amount moved.
type AddressAmount struct {
	Address Address
	Amount  decimal.Decimal
}
