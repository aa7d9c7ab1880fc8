package walletstate

import (
	"bytes"
	"encoding/binary"

	"github.com/mezonai/mmn/cryptoadapter"
	"github.com/mezonai/mmn/types"
	"github.com/mezonai/mmn/wsj"
)

// ChecksumOverAffected computes the wallet-state checksum a block
// declares: a deterministic hash over the wallets a WSJ transaction
// touched, in the order affected_wallets returns them for the given
// block version.
func (s *State) ChecksumOverAffected(txn *wsj.Transaction, blockVersion uint32) []byte {
	addrs := txn.AffectedWallets(blockVersion)

	var buf bytes.Buffer
	lenBuf := make([]byte, 8)
	for _, addr := range addrs {
		w := s.Get(addr)
		binary.BigEndian.PutUint64(lenBuf, uint64(len(addr)))
		buf.Write(lenBuf)
		buf.Write(addr)
		encodeWalletForChecksum(&buf, w)
	}
	return cryptoadapter.TruncatedSHA512(buf.Bytes())
}

// encodeWalletForChecksum writes a deterministic representation of w
// (or of absence, if w is nil — the wallet was destroyed) into buf.
func encodeWalletForChecksum(buf *bytes.Buffer, w *types.Wallet) {
	if w == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	balStr := w.Balance.String()
	lenBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(lenBuf, uint64(len(balStr)))
	buf.Write(lenBuf)
	buf.WriteString(balStr)
	binary.BigEndian.PutUint64(lenBuf, uint64(len(w.PublicKey)))
	buf.Write(lenBuf)
	buf.Write(w.PublicKey)
	buf.WriteByte(w.RequiredSignatures)
	binary.BigEndian.PutUint64(lenBuf, uint64(len(w.UserData)))
	buf.Write(lenBuf)
	buf.Write(w.UserData)
}

// CombineChecksum folds a prior checksum and a delta checksum into a
// new one: new = truncated_sha512(prev || delta) unless prev is the
// zero value, in which case delta is returned as-is (the genesis
// case).
func CombineChecksum(prev, delta []byte) []byte {
	if isZero(prev) {
		return delta
	}
	return cryptoadapter.TruncatedSHA512(append(append([]byte{}, prev...), delta...))
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
