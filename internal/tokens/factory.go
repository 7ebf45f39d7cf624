package tokens

import (
	"math/rand/v2"
)

// Factory builds token stream packets from wire bytes, from randomness and
// from the template catalogue.
type Factory struct {
	catalogue *Catalogue
}

// NewFactory returns a factory generating from c, or from the built-in
// catalogue when c is nil.
func NewFactory(c *Catalogue) *Factory {
	if c == nil {
		c = DefaultCatalogue()
	}
	return &Factory{c}
}

func (f *Factory) DeserializeContent(data []byte) (*Stream, error) {
	return deserialize(data)
}

func (f *Factory) RandomPacket(r *rand.Rand) *Stream {
	return RandomStream(r)
}

func (f *Factory) GeneratePackets(r *rand.Rand) []*Stream {
	return f.catalogue.Generate(r)
}

// OpaqueContent wraps bytes that cannot be lexed into a single constant token.
func (f *Factory) OpaqueContent(data []byte) *Stream {
	return &Stream{[]Token{{Constant, append([]byte(nil), data...)}}}
}
