// Package errors defines the coded error kinds shared by the journal
// and the block store, in the same Code+Message shape the rest of the
// fleet uses for its network errors.
package errors

import (
	"github.com/mezonai/mmn/jsonx"
)

// Code classifies a journal/store failure into one of the kinds named
// by the error handling design: corrupt entries abort a transaction,
// missing-target and divergent-state fail a single entry, shard-absent
// and io-fault are store-read outcomes that never propagate as panics.
type Code string

const (
	CodeCorruptEntry    Code = "corrupt_entry"
	CodeMissingTarget   Code = "missing_target"
	CodeDivergentState  Code = "divergent_state"
	CodeShardAbsent     Code = "shard_absent"
	CodeIOFault         Code = "io_fault"
	CodeInvalidWallet   Code = "invalid_wallet"
	CodeAccountExists   Code = "account_exists"
	CodeAccountNotFound Code = "account_not_found"
)

// JournalError is a coded error raised by wsj/walletstate. It carries
// the target address of the operation that failed when known, which
// callers use to log without re-deriving it from the entry.
type JournalError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

func (e *JournalError) Error() string {
	out, _ := jsonx.Marshal(e)
	return string(out)
}

// New builds a JournalError with no target context.
func New(code Code, message string) error {
	return &JournalError{Code: code, Message: message}
}

// NewWithTarget builds a JournalError naming the wallet address the
// failure occurred against.
func NewWithTarget(code Code, message, target string) error {
	return &JournalError{Code: code, Message: message, Target: target}
}

// CodeOf extracts the Code from err if it is a *JournalError, and the
// zero Code otherwise.
func CodeOf(err error) Code {
	je, ok := err.(*JournalError)
	if !ok {
		return ""
	}
	return je.Code
}
