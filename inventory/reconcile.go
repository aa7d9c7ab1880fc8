package inventory

import (
	"bytes"

	"github.com/mezonai/mmn/types"
)

// Reconciler evaluates advertised inventory items against local chain
// and presence state and emits fetch requests over a PeerLink.
type Reconciler struct {
	Chain    ChainView
	Presence Presence
	LocalBlk LocalBlockLock
}

// Reconcile evaluates item against the peer that advertised it,
// sending at most one fetch request. It returns whether a fetch was
// emitted. A malformed advertisement is treated as "not handled" and
// never propagates an error.
func (r *Reconciler) Reconcile(item types.InventoryItem, peer PeerLink) bool {
	switch item.Kind {
	case types.InventoryBlock:
		return r.reconcileBlock(item, peer)
	case types.InventoryTransaction:
		return r.reconcileTransaction(item, peer)
	case types.InventoryKeepAlive:
		return r.reconcileKeepAlive(item, peer)
	case types.InventoryBlockSignature:
		return r.reconcileBlockSignature(item, peer)
	default:
		return false
	}
}

func (r *Reconciler) reconcileBlock(item types.InventoryItem, peer PeerLink) bool {
	tip := r.Chain.Tip()
	if item.BlockNum <= tip {
		return false
	}
	includeTx := uint8(2)
	if r.isMaster() {
		includeTx = 0
	}
	payload := encodeGetBlock(tip+1, false, "", includeTx, true)
	return r.send(peer, CodeGetBlock, payload)
}

// isMaster reports whether this node runs the master (full-history)
// role, which lowers includeTx to 0 on a GetBlock request.
// TODO: wire this to the node's configured role once Reconciler takes
// a role/config collaborator; hardcoded false until then.
func (r *Reconciler) isMaster() bool { return false }

func (r *Reconciler) reconcileTransaction(item types.InventoryItem, peer PeerLink) bool {
	payload := encodeGetTransaction(legacyTxID(item.TxID))
	return r.send(peer, CodeGetTransaction, payload)
}

func (r *Reconciler) reconcileKeepAlive(item types.InventoryItem, peer PeerLink) bool {
	presence := r.Presence.ByAddress(item.Addr)
	if presence == nil {
		return r.send(peer, CodeGetPresence, encodeGetPresence(item.Addr))
	}
	entry, ok := presence.EntryFor(item.Device)
	if !ok || entry.LastSeen < item.LastSeenAt {
		return r.send(peer, CodeGetKeepAlive, encodeGetKeepAlive(item.Addr, item.Device))
	}
	return false
}

func (r *Reconciler) reconcileBlockSignature(item types.InventoryItem, peer PeerLink) bool {
	tip := r.Chain.Tip()
	var lowerBound uint64
	if tip >= 5 {
		lowerBound = tip - 5
	}
	if !(item.SigBlockNum > lowerBound && item.SigBlockNum <= tip+1) {
		return false
	}

	block := r.blockAt(item.SigBlockNum, tip)
	if block == nil || !bytes.Equal(block.Checksum, item.SigHash) {
		return false // peer advertises a fork we cannot service
	}
	if r.Chain.HasSignature(block, item.Signer) {
		return false
	}
	return r.send(peer, CodeGetBlockSignature, encodeGetBlockSignature(item.SigBlockNum, item.Signer))
}

// blockAt fetches the locally-known block at num, consulting the
// chain view's in-progress proposer block under its dedicated lock
// when num is the next block, and the committed chain otherwise.
func (r *Reconciler) blockAt(num, tip uint64) *types.StoredBlock {
	if num == tip+1 {
		if r.LocalBlk == nil {
			return nil
		}
		r.LocalBlk.Lock()
		defer r.LocalBlk.Unlock()
		return r.Chain.ProposerBlock()
	}
	return r.Chain.Block(num)
}

func (r *Reconciler) send(peer PeerLink, code byte, payload []byte) bool {
	if err := peer.Send(code, payload); err != nil {
		return false
	}
	return true
}
