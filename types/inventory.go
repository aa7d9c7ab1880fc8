package types

// InventoryItem is a peer's advertisement of an object it possesses.
// Exactly one of the accessors below is meaningful, selected by Kind.
type InventoryItem struct {
	Kind InventoryKind

	// Block
	BlockNum uint64

	// Transaction
	TxID []byte

	// KeepAlive
	Addr       Address
	Device     string
	LastSeenAt int64

	// BlockSignature
	SigBlockNum uint64
	SigHash     []byte
	Signer      Address
}

// InventoryKind discriminates the InventoryItem variants.
type InventoryKind int

const (
	InventoryBlock InventoryKind = iota
	InventoryTransaction
	InventoryKeepAlive
	InventoryBlockSignature
)

// PresenceEntry is one device's last-seen timestamp within a
// Presence record.
type PresenceEntry struct {
	Device   string
	LastSeen int64
}

// Presence is the set of devices known to be online for an address.
type Presence struct {
	Addr      Address
	Addresses []PresenceEntry
}

// EntryFor returns the presence entry for device, if any.
func (p *Presence) EntryFor(device string) (PresenceEntry, bool) {
	if p == nil {
		return PresenceEntry{}, false
	}
	for _, e := range p.Addresses {
		if e.Device == device {
			return e, true
		}
	}
	return PresenceEntry{}, false
}
