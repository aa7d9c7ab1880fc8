package store

import (
	"google.golang.org/protobuf/encoding/protowire"

	wsjerrors "github.com/mezonai/mmn/errors"
)

// blockHeightFromTxID decodes the block height embedded in a v8 binary
// transaction id: a varint starting at byte offset 1. Byte 0 is a
// version/type discriminator this store does not otherwise interpret.
func blockHeightFromTxID(id []byte) (uint64, error) {
	if len(id) < 2 {
		return 0, wsjerrors.New(wsjerrors.CodeCorruptEntry, "transaction id too short to carry a block height")
	}
	height, n := protowire.ConsumeVarint(id[1:])
	if n < 0 {
		return 0, wsjerrors.New(wsjerrors.CodeCorruptEntry, "malformed block height varint in transaction id")
	}
	return height, nil
}

// idKey renders a binary transaction id as the store's row key. The
// transactions table stores ids as TEXT, so ids are hex-encoded rather
// than reused raw, avoiding NUL-byte and collation surprises in SQLite
// TEXT columns.
func idKey(id []byte) string {
	buf := make([]byte, len(id)*2)
	const hexDigits = "0123456789abcdef"
	for i, b := range id {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}
	return string(buf)
}

func idFromKey(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "odd-length transaction id key")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, ok1 := hexVal(s[i*2])
		lo, ok2 := hexVal(s[i*2+1])
		if !ok1 || !ok2 {
			return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, "invalid transaction id key")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
