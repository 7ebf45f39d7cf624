package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"desockfuzz/config"
)

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPrintEmptyInput(t *testing.T) {
	var out bytes.Buffer
	if err := printInput(&out, writeFile(t, ""), false); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("printed %q", out.String())
	}
}

func TestPrintTranscript(t *testing.T) {
	transcript := "EHLO mail.example.org\r\nMAIL FROM:<a@b.c> SIZE=1024\r\nQUIT\r\n"
	path := writeFile(t, transcript)

	var out bytes.Buffer
	if err := printInput(&out, path, false); err != nil {
		t.Fatal(err)
	}
	if out.String() != transcript {
		t.Errorf("printed %q", out.String())
	}

	out.Reset()
	if err := printInput(&out, path, true); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "Input with 3 packets") {
		t.Errorf("dump %q", out.String())
	}
}

func TestPrintWhitespaceLine(t *testing.T) {
	var out bytes.Buffer
	if err := printInput(&out, writeFile(t, "\r\n"), false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "\r\n" {
		t.Errorf("printed %q", out.String())
	}
}

func TestPrintRejectsNullPacket(t *testing.T) {
	if err := printInput(&bytes.Buffer{}, writeFile(t, `{"packets":[null]}`), false); err == nil {
		t.Error("null packet accepted")
	}
}

func TestPrintMissingFile(t *testing.T) {
	if err := printInput(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope"), false); err == nil {
		t.Error("missing file accepted")
	}
}

func TestCampaignFlagsApply(t *testing.T) {
	c := config.CampaignConfig{Timeout: 5 * time.Second, DictPath: "env.dict"}
	f := campaignFlags{Output: "out", Libdesock: "libdesock.so", Corpus: "seeds"}
	if err := f.apply(&c, []string{"./server", "-v"}); err != nil {
		t.Fatal(err)
	}
	if c.OutputDir != "out" || c.CorpusDir != "seeds" || c.DictPath != "env.dict" || c.Timeout != 5*time.Second {
		t.Errorf("campaign %+v", c)
	}
	if len(c.Command) != 2 || c.Command[0] != "./server" {
		t.Errorf("command %v", c.Command)
	}
	if err := f.apply(&c, nil); err == nil {
		t.Error("empty command accepted")
	}
}
