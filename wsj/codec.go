package wsj

import (
	"bytes"
	"encoding/binary"
	"fmt"

	wsjerrors "github.com/mezonai/mmn/errors"
)

// writeI32 appends a little-endian 32-bit int, the length prefix used
// by every field in the wire format.
func writeI32(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

// writeBytes writes a length-prefixed byte string. A nil slice is
// encoded as length 0 with no following bytes — the wire format's
// "absent" marker.
func writeBytes(buf *bytes.Buffer, b []byte) {
	writeI32(buf, int32(len(b)))
	buf.Write(b)
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readI32(r *bytes.Reader) (int32, error) {
	var tmp [4]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(tmp[:])), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

// readBytes reads a length-prefixed byte string. Length 0 decodes to
// nil, matching writeBytes' "absent" convention — callers must not
// treat a nil result as an empty-but-present string.
func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readI32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n < 0 {
		return nil, wsjerrors.New(wsjerrors.CodeCorruptEntry, fmt.Sprintf("negative length prefix: %d", n))
	}
	out := make([]byte, n)
	if _, err := readFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated bool field")
	}
	return b != 0, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil || n != len(buf) {
		return n, wsjerrors.New(wsjerrors.CodeCorruptEntry, "truncated entry: unexpected EOF")
	}
	return n, nil
}

// peekTag reads the 4-byte tag without consuming it, so the transaction
// decoder can dispatch to the right variant constructor before handing
// the reader to its Decode method.
func peekTag(r *bytes.Reader) (int32, error) {
	tag, err := readI32(r)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(-4, 1); err != nil {
		return 0, wsjerrors.New(wsjerrors.CodeCorruptEntry, "failed to rewind reader")
	}
	return tag, nil
}
