package inventory

import (
	"encoding/base64"
	"encoding/binary"

	"google.golang.org/protobuf/encoding/protowire"
)

// Request codes identify which handler on the peer decodes the
// payload; values are local to this node pair and carry no other
// meaning.
const (
	CodeGetBlock           byte = 1
	CodeGetTransaction     byte = 2
	CodeGetPresence        byte = 3
	CodeGetKeepAlive       byte = 4
	CodeGetBlockSignature  byte = 5
)

// encodeGetBlock builds varint(next_height) | null-marker | endpoint |
// u8 include_tx | bool latest_only. endpoint is an opaque route hint
// the caller supplies; nullMarker is true when there is no endpoint.
func encodeGetBlock(nextHeight uint64, nullMarker bool, endpoint string, includeTx uint8, latestOnly bool) []byte {
	var buf []byte
	buf = protowire.AppendVarint(buf, nextHeight)
	buf = append(buf, boolByte(nullMarker))
	buf = protowire.AppendString(buf, endpoint)
	buf = append(buf, includeTx)
	buf = append(buf, boolByte(latestOnly))
	return buf
}

// encodeGetTransaction renders string(legacy_tx_id) | u64(0), the
// trailing zero being a reserved field the source always sends as
// zero.
func encodeGetTransaction(legacyTxID string) []byte {
	var buf []byte
	buf = protowire.AppendString(buf, legacyTxID)
	trailer := make([]byte, 8)
	binary.LittleEndian.PutUint64(trailer, 0)
	buf = append(buf, trailer...)
	return buf
}

// encodeGetPresence renders i32 addr_len | addr_bytes.
func encodeGetPresence(addr []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(addr)))
	return append(lenBuf, addr...)
}

// encodeGetKeepAlive renders varint(addr_len) | addr |
// varint(device_len) | device.
func encodeGetKeepAlive(addr []byte, device string) []byte {
	var buf []byte
	buf = protowire.AppendVarint(buf, uint64(len(addr)))
	buf = append(buf, addr...)
	buf = protowire.AppendVarint(buf, uint64(len(device)))
	buf = append(buf, []byte(device)...)
	return buf
}

// encodeGetBlockSignature renders varint(block_num) | varint(addr_len)
// | addr.
func encodeGetBlockSignature(blockNum uint64, addr []byte) []byte {
	var buf []byte
	buf = protowire.AppendVarint(buf, blockNum)
	buf = protowire.AppendVarint(buf, uint64(len(addr)))
	buf = append(buf, addr...)
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// legacyTxID renders a v8 binary transaction id in the base64 legacy
// string form used both by the shard store and the wire protocol.
func legacyTxID(id []byte) string {
	return base64.StdEncoding.EncodeToString(id)
}
