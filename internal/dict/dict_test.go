package dict

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"desockfuzz/internal/tokens"

	"go.uber.org/zap/zaptest"
)

func TestParse(t *testing.T) {
	const dict = `# SMTP keywords
kw_helo="HELO"
"EHLO"

kw_crlf="\x0d\x0a"
quoted="say \"hi\""
slash="a\\b"
dup="HELO"
empty=""
`
	d, err := Parse(strings.NewReader(dict))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"HELO", "EHLO", "\r\n", `say "hi"`, `a\b`}
	if d.Len() != len(want) {
		t.Fatalf("got %d entries: %q", d.Len(), d)
	}
	for i, w := range want {
		if string(d[i]) != w {
			t.Errorf("entry %d = %q, want %q", i, d[i], w)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unquoted":        "kw=HELO",
		"single quote":    `kw="`,
		"bad hex":         `"\xZZ"`,
		"truncated hex":   `"\x4"`,
		"unknown escape":  `"\n"`,
		"trailing escape": `"abc\"`,
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(line)); err == nil || !strings.Contains(err.Error(), "line 1") {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestGrabDictWithoutRedis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smtp.dict")
	if err := os.WriteFile(path, []byte("\"STARTTLS\"\n\"AUTH\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	g := NewDictGrabber(DictGrabberParams{Logger: zaptest.NewLogger(t)})

	d, err := g.GrabDict(context.Background(), path)
	if err != nil || d.Len() != 2 {
		t.Fatalf("got %q, %v", d, err)
	}
	if d, err := g.GrabDict(context.Background(), ""); err != nil || d.Len() != 0 {
		t.Errorf("no dictionary: %q, %v", d, err)
	}
	if _, err := g.GrabDict(context.Background(), path+".missing"); err == nil {
		t.Error("missing dictionary accepted")
	}
}

func TestMerge(t *testing.T) {
	a := tokens.Dictionary{[]byte("HELO"), []byte("QUIT")}
	b := tokens.Dictionary{[]byte("QUIT"), []byte("RSET")}
	got := Merge(a, b)
	if got.Len() != 3 || string(got[2]) != "RSET" {
		t.Errorf("merged %q", got)
	}
}
