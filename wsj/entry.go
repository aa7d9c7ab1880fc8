package wsj

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mezonai/mmn/cryptoadapter"
	wsjerrors "github.com/mezonai/mmn/errors"
	"github.com/mezonai/mmn/logx"
	"github.com/mezonai/mmn/types"
)

// Entry tags. These discriminants are part of the wire format and
// must never be renumbered — decoders on disk and on the wire depend
// on them staying stable across versions.
const (
	TagBalance            int32 = 1
	TagAllowedSigner      int32 = 2
	TagRequiredSignatures int32 = 3
	TagPubkey             int32 = 4
	TagData               int32 = 5
	TagCreate             int32 = 6
	TagDestroy            int32 = 7
)

// Entry is a single reversible wallet-state mutation. Implementations
// carry enough prior state to reverse themselves without consulting
// any other entry. Dispatch is by an exhaustive tag switch in
// DecodeEntry, not by an inheritance hierarchy.
type Entry interface {
	Tag() int32
	Target() types.Address
	Encode(buf *bytes.Buffer)
	Apply(ws WalletState) error
	Revert(ws WalletState) error
	Checksum() []byte
}

func encodeEntry(e Entry) []byte {
	var buf bytes.Buffer
	writeI32(&buf, e.Tag())
	e.Encode(&buf)
	return buf.Bytes()
}

func checksumOf(e Entry) []byte {
	return cryptoadapter.TruncatedSHA512(encodeEntry(e))
}

// DecodeEntry peeks the tag, rewinds, and constructs the matching
// entry variant. An unrecognized tag is a corrupt-entry error and
// aborts the enclosing transaction decode.
func DecodeEntry(r *bytes.Reader) (Entry, error) {
	tag, err := peekTag(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagBalance:
		return decodeBalanceEntry(r)
	case TagAllowedSigner:
		return decodeAllowedSignerEntry(r)
	case TagRequiredSignatures:
		return decodeRequiredSignaturesEntry(r)
	case TagPubkey:
		return decodePubkeyEntry(r)
	case TagData:
		return decodeDataEntry(r)
	case TagCreate:
		return decodeCreateEntry(r)
	case TagDestroy:
		return decodeDestroyEntry(r)
	default:
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, fmt.Sprintf("unknown entry tag: %d", tag))
	}
}

// ---- Balance ----

type BalanceEntry struct {
	target     types.Address
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
}

func NewBalanceEntry(target types.Address, old, new decimal.Decimal) *BalanceEntry {
	return &BalanceEntry{target: target.Clone(), OldBalance: old, NewBalance: new}
}

func (e *BalanceEntry) Tag() int32            { return TagBalance }
func (e *BalanceEntry) Target() types.Address { return e.target }
func (e *BalanceEntry) Checksum() []byte      { return checksumOf(e) }

func (e *BalanceEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
	writeBytes(buf, []byte(e.OldBalance.String()))
	writeBytes(buf, []byte(e.NewBalance.String()))
}

func decodeBalanceEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil { // consume tag
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	oldRaw, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	newRaw, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	old, err := parseDecimal(oldRaw)
	if err != nil {
		return nil, err
	}
	nw, err := parseDecimal(newRaw)
	if err != nil {
		return nil, err
	}
	return &BalanceEntry{target: target, OldBalance: old, NewBalance: nw}, nil
}

func (e *BalanceEntry) Apply(ws WalletState) error {
	if !ws.SetBalanceInternal(e.target, e.NewBalance, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set_balance_internal failed on apply", e.target.String())
	}
	return nil
}

func (e *BalanceEntry) Revert(ws WalletState) error {
	if !ws.SetBalanceInternal(e.target, e.OldBalance, true) {
		logx.Warn("WSJ", fmt.Sprintf("balance revert failed for %s", e.target))
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set_balance_internal failed on revert", e.target.String())
	}
	return nil
}

func parseDecimal(raw []byte) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, wsjerrors.New(wsjerrors.CodeCorruptEntry, "invalid decimal in entry: "+err.Error())
	}
	return d, nil
}

// ---- AllowedSigner ----

type AllowedSignerEntry struct {
	target        types.Address
	Signer        types.Address
	Adding        bool
	AdjustSigners bool // only meaningful and written when Adding == false
}

func NewAllowedSignerEntry(target, signer types.Address, adding, adjustSigners bool) *AllowedSignerEntry {
	return &AllowedSignerEntry{target: target.Clone(), Signer: signer.Clone(), Adding: adding, AdjustSigners: adjustSigners}
}

func (e *AllowedSignerEntry) Tag() int32            { return TagAllowedSigner }
func (e *AllowedSignerEntry) Target() types.Address { return e.target }
func (e *AllowedSignerEntry) Checksum() []byte      { return checksumOf(e) }

func (e *AllowedSignerEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
	writeBytes(buf, e.Signer)
	writeBool(buf, e.Adding)
	if !e.Adding {
		writeBool(buf, e.AdjustSigners)
	}
}

func decodeAllowedSignerEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil {
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	signer, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	adding, err := readBool(r)
	if err != nil {
		return nil, err
	}
	adjust := false
	if !adding {
		adjust, err = readBool(r)
		if err != nil {
			return nil, err
		}
	}
	return &AllowedSignerEntry{target: target, Signer: signer, Adding: adding, AdjustSigners: adjust}, nil
}

func (e *AllowedSignerEntry) Apply(ws WalletState) error {
	if e.Adding {
		if !ws.AddAllowedSignerInternal(e.target, e.Signer, true, false, false) {
			return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "add allowed signer failed", e.target.String())
		}
		return nil
	}
	if !ws.AddAllowedSignerInternal(e.target, e.Signer, false, e.AdjustSigners, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "remove allowed signer failed", e.target.String())
	}
	return nil
}

func (e *AllowedSignerEntry) Revert(ws WalletState) error {
	// The revert of an add is a remove (without adjusting required
	// signatures); the revert of a remove is an add back that restores
	// required_signatures if the removal had decremented it.
	if e.Adding {
		if !ws.AddAllowedSignerInternal(e.target, e.Signer, false, false, true) {
			return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "revert add allowed signer failed", e.target.String())
		}
		return nil
	}
	if !ws.AddAllowedSignerInternal(e.target, e.Signer, true, e.AdjustSigners, true) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "revert remove allowed signer failed", e.target.String())
	}
	return nil
}

// ---- RequiredSignatures ----

type RequiredSignaturesEntry struct {
	target   types.Address
	OldCount uint8
	NewCount uint8
}

func NewRequiredSignaturesEntry(target types.Address, old, new uint8) *RequiredSignaturesEntry {
	return &RequiredSignaturesEntry{target: target.Clone(), OldCount: old, NewCount: new}
}

func (e *RequiredSignaturesEntry) Tag() int32            { return TagRequiredSignatures }
func (e *RequiredSignaturesEntry) Target() types.Address { return e.target }
func (e *RequiredSignaturesEntry) Checksum() []byte      { return checksumOf(e) }

func (e *RequiredSignaturesEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
	buf.WriteByte(e.OldCount)
	buf.WriteByte(e.NewCount)
}

func decodeRequiredSignaturesEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil {
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	old, err := r.ReadByte()
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated required-signatures entry")
	}
	nw, err := r.ReadByte()
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated required-signatures entry")
	}
	return &RequiredSignaturesEntry{target: target, OldCount: old, NewCount: nw}, nil
}

func (e *RequiredSignaturesEntry) Apply(ws WalletState) error {
	if !ws.SetRequiredSignaturesInternal(e.target, e.NewCount) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set required signatures failed on apply", e.target.String())
	}
	return nil
}

func (e *RequiredSignaturesEntry) Revert(ws WalletState) error {
	if !ws.SetRequiredSignaturesInternal(e.target, e.OldCount) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set required signatures failed on revert", e.target.String())
	}
	return nil
}

// ---- Pubkey ----

type PubkeyEntry struct {
	target types.Address
	Pubkey []byte
}

func NewPubkeyEntry(target types.Address, pubkey []byte) *PubkeyEntry {
	return &PubkeyEntry{target: target.Clone(), Pubkey: pubkey}
}

func (e *PubkeyEntry) Tag() int32            { return TagPubkey }
func (e *PubkeyEntry) Target() types.Address { return e.target }
func (e *PubkeyEntry) Checksum() []byte      { return checksumOf(e) }

func (e *PubkeyEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
	writeBytes(buf, e.Pubkey)
}

func decodePubkeyEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil {
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	pubkey, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &PubkeyEntry{target: target, Pubkey: pubkey}, nil
}

func (e *PubkeyEntry) Apply(ws WalletState) error {
	if !ws.SetPubkeyInternal(e.target, e.Pubkey, false) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set pubkey failed on apply", e.target.String())
	}
	return nil
}

func (e *PubkeyEntry) Revert(ws WalletState) error {
	if !ws.SetPubkeyInternal(e.target, nil, true) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "set pubkey failed on revert", e.target.String())
	}
	return nil
}

// ---- Data ----
//
// A known defect in an earlier version of this decoder peeked the tag
// as Pubkey rather than Data. Replicating it verbatim would make
// decoding this variant impossible, since the encoder writes tag 5.
// We decode by the tag the encoder actually writes (Data = 5).

type DataEntry struct {
	target  types.Address
	NewData []byte
	OldData []byte
}

func NewDataEntry(target types.Address, old, new []byte) *DataEntry {
	return &DataEntry{target: target.Clone(), OldData: old, NewData: new}
}

func (e *DataEntry) Tag() int32            { return TagData }
func (e *DataEntry) Target() types.Address { return e.target }
func (e *DataEntry) Checksum() []byte      { return checksumOf(e) }

// Encode writes new-before-old.
func (e *DataEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
	writeBytes(buf, e.NewData)
	writeBytes(buf, e.OldData)
}

func decodeDataEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil {
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	newData, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	oldData, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &DataEntry{target: target, NewData: newData, OldData: oldData}, nil
}

func (e *DataEntry) Apply(ws WalletState) error {
	if !ws.SetUserDataInternal(e.target, e.NewData, e.OldData) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeDivergentState, "current data does not match entry's old_data", e.target.String())
	}
	return nil
}

func (e *DataEntry) Revert(ws WalletState) error {
	if !ws.SetUserDataInternal(e.target, e.OldData, e.NewData) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeDivergentState, "current data does not match entry's new_data on revert", e.target.String())
	}
	return nil
}

// ---- Create ----

type CreateEntry struct {
	target types.Address
}

func NewCreateEntry(target types.Address) *CreateEntry {
	return &CreateEntry{target: target.Clone()}
}

func (e *CreateEntry) Tag() int32            { return TagCreate }
func (e *CreateEntry) Target() types.Address { return e.target }
func (e *CreateEntry) Checksum() []byte      { return checksumOf(e) }

func (e *CreateEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
}

func decodeCreateEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil {
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &CreateEntry{target: target}, nil
}

// Apply is a no-op: the wallet is created by the caller before the
// entry is recorded, exactly like the source's Create semantics.
func (e *CreateEntry) Apply(ws WalletState) error {
	return nil
}

func (e *CreateEntry) Revert(ws WalletState) error {
	if !ws.RemoveWalletInternal(e.target) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "remove wallet failed on create-revert", e.target.String())
	}
	return nil
}

// ---- Destroy ----

type DestroyEntry struct {
	target   types.Address
	Snapshot *types.Wallet
}

func NewDestroyEntry(target types.Address, snapshot *types.Wallet) *DestroyEntry {
	return &DestroyEntry{target: target.Clone(), Snapshot: snapshot.Clone()}
}

func (e *DestroyEntry) Tag() int32            { return TagDestroy }
func (e *DestroyEntry) Target() types.Address { return e.target }
func (e *DestroyEntry) Checksum() []byte      { return checksumOf(e) }

func (e *DestroyEntry) Encode(buf *bytes.Buffer) {
	writeBytes(buf, e.target)
	var wbuf bytes.Buffer
	encodeWallet(&wbuf, e.Snapshot)
	writeBytes(buf, wbuf.Bytes())
}

func decodeDestroyEntry(r *bytes.Reader) (Entry, error) {
	if _, err := readI32(r); err != nil {
		return nil, err
	}
	target, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	walletBytes, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	w, err := decodeWallet(bytes.NewReader(walletBytes))
	if err != nil {
		return nil, err
	}
	return &DestroyEntry{target: target, Snapshot: w}, nil
}

func (e *DestroyEntry) Apply(ws WalletState) error {
	if !ws.RemoveWalletInternal(e.target) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "remove wallet failed on destroy apply", e.target.String())
	}
	return nil
}

func (e *DestroyEntry) Revert(ws WalletState) error {
	if !ws.SetWalletInternal(e.target, e.Snapshot) {
		return wsjerrors.NewWithTarget(wsjerrors.CodeMissingTarget, "restore wallet snapshot failed on destroy revert", e.target.String())
	}
	return nil
}

// encodeWallet/decodeWallet is the wallet's own codec, used only to
// embed a full snapshot inside a Destroy entry.
func encodeWallet(buf *bytes.Buffer, w *types.Wallet) {
	writeBytes(buf, w.ID)
	writeBytes(buf, []byte(w.Balance.String()))
	writeBytes(buf, w.PublicKey)
	signers := make([]types.Address, 0, len(w.AllowedSigners))
	for _, signer := range w.AllowedSigners {
		signers = append(signers, signer)
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i].Compare(signers[j]) < 0 })
	writeI32(buf, int32(len(signers)))
	for _, signer := range signers {
		writeBytes(buf, signer)
	}
	buf.WriteByte(w.RequiredSignatures)
	writeBytes(buf, w.UserData)
}

func decodeWallet(r *bytes.Reader) (*types.Wallet, error) {
	id, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	balRaw, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	bal, err := parseDecimal(balRaw)
	if err != nil {
		return nil, err
	}
	pubkey, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	signerCount, err := readI32(r)
	if err != nil {
		return nil, err
	}
	signers := make(map[string]types.Address, signerCount)
	for i := int32(0); i < signerCount; i++ {
		s, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		signers[types.Address(s).String()] = s
	}
	required, err := r.ReadByte()
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated wallet snapshot")
	}
	userData, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &types.Wallet{
		ID:                 id,
		Balance:            bal,
		PublicKey:          pubkey,
		AllowedSigners:     signers,
		RequiredSignatures: required,
		UserData:           userData,
	}, nil
}
