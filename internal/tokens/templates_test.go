package tokens

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"desockfuzz/internal/utils"
)

func TestDefaultCatalogue(t *testing.T) {
	c := DefaultCatalogue()
	if c.Len() != 18 {
		t.Fatalf("default catalogue has %d exchanges, want 18", c.Len())
	}
	if c.Protocol != "smtp" {
		t.Errorf("protocol = %q", c.Protocol)
	}
	for _, ex := range c.Exchanges {
		if len(ex.streams) != len(ex.Packets) {
			t.Errorf("exchange %s not fully parsed", ex.Name)
		}
		for i, raw := range ex.Packets {
			if got := string(ex.streams[i].Bytes()); got != raw {
				t.Errorf("exchange %s packet %d = %q, want %q", ex.Name, i, got, raw)
			}
		}
	}
}

func TestGenerateReturnsCopies(t *testing.T) {
	c := DefaultCatalogue()
	r := utils.NewRand(3)
	seen := map[int]bool{}
	for range 500 {
		packets := c.Generate(r)
		seen[len(packets)] = true
		for _, p := range packets {
			for i := range p.Tokens {
				p.Tokens[i].Data = nil
			}
		}
	}
	for _, n := range []int{1, 3, 4} {
		if !seen[n] {
			t.Errorf("no exchange with %d packets generated", n)
		}
	}
	// the catalogue must survive callers clobbering generated packets
	for _, ex := range c.Exchanges {
		for _, s := range ex.streams {
			if s.Size() == 0 {
				t.Fatalf("exchange %s was modified through a generated copy", ex.Name)
			}
		}
	}
}

func TestParseCatalogueErrors(t *testing.T) {
	tests := map[string]string{
		"empty":        "protocol: ftp\nexchanges: []\n",
		"no packets":   "exchanges:\n  - name: x\n    packets: []\n",
		"unlexable":    "exchanges:\n  - name: x\n    packets: [\"café\"]\n",
		"invalid yaml": "exchanges: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalogue([]byte(doc)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ftp.yaml")
	doc := "protocol: ftp\nexchanges:\n  - name: login\n    packets:\n      - \"USER anonymous\\r\\n\"\n      - \"PASS x\\r\\n\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalogue(path)
	if err != nil {
		t.Fatal(err)
	}
	packets := NewFactory(c).GeneratePackets(utils.NewRand(1))
	if len(packets) != 2 || !strings.HasPrefix(string(packets[0].Bytes()), "USER") {
		t.Errorf("unexpected generation %v", packets)
	}
}
