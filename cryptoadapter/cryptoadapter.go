// Package cryptoadapter provides the thin wrappers the journal and
// store need for hashing: a truncated SHA-512 for the wire-format
// checksums, and a SHA3-256 digest for internal, non-wire diagnostics
// such as the store's fingerprint.
package cryptoadapter

import (
	"crypto/sha512"

	"golang.org/x/crypto/sha3"
)

// ChecksumLen is the length in bytes of a truncated SHA-512 checksum,
// matching the 28-byte digest of SHA-512/224 without requiring the
// standard library's separate SHA-512/224 initialization vector.
const ChecksumLen = 28

// TruncatedSHA512 hashes b with SHA-512 and returns the leading
// ChecksumLen bytes, the primitive entry, block, and transaction
// checksums are built from. This is wire-format critical and must not
// change algorithm.
func TruncatedSHA512(b []byte) []byte {
	sum := sha512.Sum512(b)
	out := make([]byte, ChecksumLen)
	copy(out, sum[:ChecksumLen])
	return out
}

// ContentDigest hashes b with SHA3-256, used for local diagnostics
// (the store's Fingerprint) that never travel on the wire and carry no
// backward-compatibility constraint.
func ContentDigest(b []byte) []byte {
	sum := sha3.Sum256(b)
	return sum[:]
}
