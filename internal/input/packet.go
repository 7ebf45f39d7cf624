package input

import "math/rand/v2"

// Packet is one message of a test case. Implementations write their content
// into a caller supplied buffer, truncating when it is short.
type Packet[P any] interface {
	SerializeContent(buf []byte) int
	Clone() P
}

// PacketFactory creates packets of type P: from received bytes, from
// randomness, and from a catalogue of realistic exchanges.
type PacketFactory[P any] interface {
	DeserializeContent(data []byte) (P, error)
	RandomPacket(r *rand.Rand) P
	GeneratePackets(r *rand.Rand) []P
}

// OpaqueFactory is implemented by factories that can wrap bytes which failed
// to deserialize.
type OpaqueFactory[P any] interface {
	OpaqueContent(data []byte) P
}
