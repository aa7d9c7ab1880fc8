// Package inventory implements the reconciliation decision table that
// decides, for an advertised inventory item, whether a fetch should
// be requested from the advertising peer.
package inventory

import "github.com/mezonai/mmn/types"

// ChainView is the collaborator handle onto committed chain state, the
// same narrow-interface pattern the WSJ package uses for wallet state:
// injected explicitly rather than reached through a process-wide
// singleton.
type ChainView interface {
	Tip() uint64
	Block(num uint64) *types.StoredBlock
	ProposerBlock() *types.StoredBlock
	HasSignature(block *types.StoredBlock, signer types.Address) bool
}

// Presence reports the last-seen device set advertised for peers.
type Presence interface {
	ByAddress(addr types.Address) *types.Presence
}

// PeerLink is the outbound half of a peer connection: fire-and-forget
// framed sends, keyed by a request code.
type PeerLink interface {
	Send(code byte, payload []byte) error
}

// LocalBlockLock guards read access to the in-progress local block the
// node is currently signing. Callers must take then release it around
// any read, never holding it across a network send.
type LocalBlockLock interface {
	Lock()
	Unlock()
}
