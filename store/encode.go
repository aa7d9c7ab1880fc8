// Package store implements the block-addressable persistent store:
// blocks and transactions sharded across per-range SQL databases, plus
// a dedicated super-block side database, using database/sql over one
// SQLite-style file per shard.
package store

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	wsjerrors "github.com/mezonai/mmn/errors"
	"github.com/mezonai/mmn/types"
)

// shuffle byte-reverses b, the storage obfuscation convention the
// source applies to transaction data blobs. It has no cryptographic
// purpose and must be preserved bit-for-bit for compatibility.
// Byte reversal is its own inverse, so both directions call this.
func shuffle(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// encodeAddrAmountList renders an ordered to_list/from_list as
// "||addr_b58:amount_base64_be" pairs, leading separator present.
func encodeAddrAmountList(list []types.AddressAmount) string {
	var sb strings.Builder
	for _, aa := range list {
		sb.WriteString("||")
		sb.WriteString(base58.Encode(aa.Address))
		sb.WriteByte(':')
		sb.WriteString(base64.StdEncoding.EncodeToString(amountToBytesBE(aa.Amount)))
	}
	return sb.String()
}

func decodeAddrAmountList(s string) ([]types.AddressAmount, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "||")
	out := make([]types.AddressAmount, 0, len(parts))
	for i, p := range parts {
		if i == 0 || p == "" {
			continue // leading empty element from the leading separator
		}
		kv := strings.SplitN(p, ":", 2)
		if len(kv) != 2 {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed address:amount pair: "+p)
		}
		addr := base58.Decode(kv[0])
		amtBytes, err := base64.StdEncoding.DecodeString(kv[1])
		if err != nil {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed amount encoding: "+err.Error())
		}
		out = append(out, types.AddressAmount{Address: addr, Amount: amountFromBytesBE(amtBytes)})
	}
	return out, nil
}

// amountToBytesBE renders a decimal amount as its big-endian integer
// bytes via uint256, the same balance representation the wallet-state
// component's counterpart node code stores accounts in; the scale is
// not preserved by this encoding (amounts here are always integral
// base units).
func amountToBytesBE(d decimal.Decimal) []byte {
	u := new(uint256.Int)
	u.SetFromBig(d.BigInt())
	return u.Bytes()
}

func amountFromBytesBE(b []byte) decimal.Decimal {
	u := new(uint256.Int).SetBytes(b)
	return decimal.NewFromBigInt(u.ToBig(), 0)
}

// encodeLegacyTxID renders a v8 binary transaction id in the legacy
// delimited string form used by the transactions column.
func encodeLegacyTxID(id []byte) string {
	return base64.StdEncoding.EncodeToString(id)
}

func decodeLegacyTxID(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed legacy tx id: "+err.Error())
	}
	return b, nil
}

// encodeTransactionsField builds the delimited list of legacy-form tx
// ids, separator "||", leading separator present.
func encodeTransactionsField(ids [][]byte) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString("||")
		sb.WriteString(encodeLegacyTxID(id))
	}
	return sb.String()
}

func decodeTransactionsField(s string) ([][]byte, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "||")
	out := make([][]byte, 0, len(parts))
	for i, p := range parts {
		if i == 0 || p == "" {
			continue
		}
		id, err := decodeLegacyTxID(p)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// encodeSignaturesField builds the delimited "pubkey_b64:sig_b64" list,
// rendering an absent pubkey as the literal "0".
func encodeSignaturesField(sigs []types.BlockSignature) string {
	var sb strings.Builder
	for _, s := range sigs {
		sb.WriteString("||")
		if len(s.PubKey) == 0 {
			sb.WriteByte('0')
		} else {
			sb.WriteString(base64.StdEncoding.EncodeToString(s.PubKey))
		}
		sb.WriteByte(':')
		sb.WriteString(base64.StdEncoding.EncodeToString(s.Signature))
	}
	return sb.String()
}

func decodeSignaturesField(s string) ([]types.BlockSignature, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "||")
	raw := make([]types.BlockSignature, 0, len(parts))
	for i, p := range parts {
		if i == 0 || p == "" {
			continue
		}
		kv := strings.SplitN(p, ":", 2)
		if len(kv) != 2 {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed signature pair: "+p)
		}
		var pubkey []byte
		if kv[0] != "0" {
			decoded, err := base64.StdEncoding.DecodeString(kv[0])
			if err != nil {
				return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed pubkey encoding: "+err.Error())
			}
			pubkey = decoded
		}
		sig, err := base64.StdEncoding.DecodeString(kv[1])
		if err != nil {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed signature encoding: "+err.Error())
		}
		raw = append(raw, types.BlockSignature{PubKey: pubkey, Signature: sig})
	}
	return types.DedupSignatures(raw), nil
}

// encodeSuperBlockSegments concatenates u64 num | i32 len | bytes
// checksum per segment.
func encodeSuperBlockSegments(segs []types.SuperBlockSegment) []byte {
	var buf []byte
	for _, seg := range segs {
		numBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(numBuf, seg.Num)
		buf = append(buf, numBuf...)
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(seg.Checksum)))
		buf = append(buf, lenBuf...)
		buf = append(buf, seg.Checksum...)
	}
	return buf
}

// decodeSuperBlockSegments parses the concatenation described above; i
// advances exactly 8+4+len per segment.
func decodeSuperBlockSegments(b []byte) ([]types.SuperBlockSegment, error) {
	var out []types.SuperBlockSegment
	i := 0
	for i < len(b) {
		if i+8+4 > len(b) {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated super block segments")
		}
		num := binary.BigEndian.Uint64(b[i : i+8])
		length := int(binary.BigEndian.Uint32(b[i+8 : i+12]))
		start := i + 12
		if start+length > len(b) {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated super block segment checksum")
		}
		checksum := append([]byte(nil), b[start:start+length]...)
		out = append(out, types.SuperBlockSegment{Num: num, Checksum: checksum})
		i = start + length
	}
	return out, nil
}
