package core

import "time"

// RawPacket is one ROHC packet taken off the channel.
type RawPacket struct {
	Data      []byte    // ROHC packet, starting with padding/add-CID if any
	Timestamp time.Time // Capture or receive timestamp
	Arrival   uint32    // Monotonic arrival counter used by the inter-arrival heuristic
}

// DecodedPacket is the result of decompressing one RawPacket.
type DecodedPacket struct {
	Timestamp time.Time
	CID       uint16
	Profile   ProfileID
	Kind      PacketKind
	SN        uint32
	Data      []byte   // Uncompressed IP packet, nil for IR without dynamic chain
	Repair    string   // SN repair that saved the packet, empty when none
	Lists     []string // Encoding of every extension header list received
}
