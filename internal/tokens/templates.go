package tokens

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Exchange is a named sequence of packets taken from a real protocol session.
type Exchange struct {
	Name    string   `yaml:"name"`
	Packets []string `yaml:"packets"`

	streams []*Stream
}

// Catalogue is the fixed set of exchanges the generation mutator splices in.
type Catalogue struct {
	Protocol  string     `yaml:"protocol"`
	Exchanges []Exchange `yaml:"exchanges"`
}

// ParseCatalogue decodes a YAML catalogue and lexes every packet up front.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode template catalogue: %w", err)
	}
	if len(c.Exchanges) == 0 {
		return nil, errors.New("template catalogue has no exchanges")
	}
	for i := range c.Exchanges {
		ex := &c.Exchanges[i]
		if len(ex.Packets) == 0 {
			return nil, fmt.Errorf("exchange %q has no packets", ex.Name)
		}
		ex.streams = make([]*Stream, len(ex.Packets))
		for j, raw := range ex.Packets {
			stream, err := ParseString(raw)
			if err != nil {
				return nil, fmt.Errorf("exchange %q packet %d: %w", ex.Name, j, err)
			}
			ex.streams[j] = stream
		}
	}
	return &c, nil
}

func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// DefaultCatalogue returns the built-in SMTP catalogue.
func DefaultCatalogue() *Catalogue {
	c, err := ParseCatalogue(defaultTemplates)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalogue) Len() int {
	return len(c.Exchanges)
}

// Generate picks an exchange uniformly and returns fresh copies of its packets.
func (c *Catalogue) Generate(r *rand.Rand) []*Stream {
	ex := c.Exchanges[r.IntN(len(c.Exchanges))]
	out := make([]*Stream, len(ex.streams))
	for i, s := range ex.streams {
		out[i] = s.Clone()
	}
	return out
}
