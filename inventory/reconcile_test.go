package inventory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mezonai/mmn/types"
)

type fakeChain struct {
	tip        uint64
	blocks     map[uint64]*types.StoredBlock
	proposer   *types.StoredBlock
	signatures map[string]bool
}

func newFakeChain(tip uint64) *fakeChain {
	return &fakeChain{tip: tip, blocks: make(map[uint64]*types.StoredBlock), signatures: make(map[string]bool)}
}

func (c *fakeChain) Tip() uint64                   { return c.tip }
func (c *fakeChain) Block(num uint64) *types.StoredBlock { return c.blocks[num] }
func (c *fakeChain) ProposerBlock() *types.StoredBlock   { return c.proposer }
func (c *fakeChain) HasSignature(block *types.StoredBlock, signer types.Address) bool {
	return c.signatures[string(block.Checksum)+signer.String()]
}

type fakePresence struct {
	byAddr map[string]*types.Presence
}

func (p *fakePresence) ByAddress(addr types.Address) *types.Presence {
	return p.byAddr[addr.String()]
}

type fakePeer struct {
	mu       sync.Mutex
	code     byte
	payload  []byte
	sent     bool
}

func (p *fakePeer) Send(code byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.code = code
	p.payload = payload
	p.sent = true
	return nil
}

func TestReconcileBlockAboveTipEmitsFetch(t *testing.T) {
	chain := newFakeChain(10)
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	emitted := r.Reconcile(types.InventoryItem{Kind: types.InventoryBlock, BlockNum: 11}, peer)
	assert.True(t, emitted)
	assert.True(t, peer.sent)
	assert.Equal(t, CodeGetBlock, peer.code)
}

func TestReconcileBlockAtOrBelowTipNoFetch(t *testing.T) {
	chain := newFakeChain(10)
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	emitted := r.Reconcile(types.InventoryItem{Kind: types.InventoryBlock, BlockNum: 10}, peer)
	assert.False(t, emitted)
	assert.False(t, peer.sent)
}

func TestReconcileTransactionAlwaysFetches(t *testing.T) {
	chain := newFakeChain(0)
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	emitted := r.Reconcile(types.InventoryItem{Kind: types.InventoryTransaction, TxID: []byte{1, 2, 3}}, peer)
	assert.True(t, emitted)
	assert.Equal(t, CodeGetTransaction, peer.code)
}

// TestKeepAliveScenario is seed scenario 6.
func TestKeepAliveScenario(t *testing.T) {
	a := types.Address{1, 1, 1}
	presence := &types.Presence{Addr: a, Addresses: []types.PresenceEntry{{Device: "D", LastSeen: 100}}}
	chain := newFakeChain(0)
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{a.String(): presence}}}

	peer1 := &fakePeer{}
	emitted := r.Reconcile(types.InventoryItem{Kind: types.InventoryKeepAlive, Addr: a, Device: "D", LastSeenAt: 150}, peer1)
	assert.True(t, emitted)
	assert.Equal(t, CodeGetKeepAlive, peer1.code)

	peer2 := &fakePeer{}
	emitted = r.Reconcile(types.InventoryItem{Kind: types.InventoryKeepAlive, Addr: a, Device: "D", LastSeenAt: 50}, peer2)
	assert.False(t, emitted)
	assert.False(t, peer2.sent)
}

func TestKeepAliveNoPresenceFetchesPresence(t *testing.T) {
	a := types.Address{2, 2, 2}
	chain := newFakeChain(0)
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	emitted := r.Reconcile(types.InventoryItem{Kind: types.InventoryKeepAlive, Addr: a, Device: "D", LastSeenAt: 1}, peer)
	assert.True(t, emitted)
	assert.Equal(t, CodeGetPresence, peer.code)
}

func TestBlockSignatureWithinWindowAndUnsigned(t *testing.T) {
	chain := newFakeChain(10)
	block := &types.StoredBlock{Num: 8, Checksum: []byte{1, 2, 3}}
	chain.blocks[8] = block
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	item := types.InventoryItem{Kind: types.InventoryBlockSignature, SigBlockNum: 8, SigHash: []byte{1, 2, 3}, Signer: types.Address{9}}
	emitted := r.Reconcile(item, peer)
	assert.True(t, emitted)
	assert.Equal(t, CodeGetBlockSignature, peer.code)
}

func TestBlockSignatureChecksumMismatchDeclines(t *testing.T) {
	chain := newFakeChain(10)
	chain.blocks[8] = &types.StoredBlock{Num: 8, Checksum: []byte{9, 9, 9}}
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	item := types.InventoryItem{Kind: types.InventoryBlockSignature, SigBlockNum: 8, SigHash: []byte{1, 2, 3}, Signer: types.Address{9}}
	emitted := r.Reconcile(item, peer)
	assert.False(t, emitted)
}

func TestBlockSignatureOutsideWindowDeclines(t *testing.T) {
	chain := newFakeChain(20)
	chain.blocks[10] = &types.StoredBlock{Num: 10, Checksum: []byte{1, 2, 3}}
	r := &Reconciler{Chain: chain, Presence: &fakePresence{byAddr: map[string]*types.Presence{}}}
	peer := &fakePeer{}

	item := types.InventoryItem{Kind: types.InventoryBlockSignature, SigBlockNum: 10, SigHash: []byte{1, 2, 3}, Signer: types.Address{9}}
	emitted := r.Reconcile(item, peer)
	assert.False(t, emitted)
}

func TestBlockSignatureAtTipPlusOneUsesLocalBlockLock(t *testing.T) {
	chain := newFakeChain(10)
	chain.proposer = &types.StoredBlock{Num: 11, Checksum: []byte{4, 4, 4}}
	var mu sync.Mutex
	r := &Reconciler{
		Chain:    chain,
		Presence: &fakePresence{byAddr: map[string]*types.Presence{}},
		LocalBlk: &mu,
	}
	peer := &fakePeer{}

	item := types.InventoryItem{Kind: types.InventoryBlockSignature, SigBlockNum: 11, SigHash: []byte{4, 4, 4}, Signer: types.Address{9}}
	emitted := r.Reconcile(item, peer)
	assert.True(t, emitted)
}
