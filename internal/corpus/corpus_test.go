package corpus

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"desockfuzz/internal/input"
	"desockfuzz/internal/tokens"

	"go.uber.org/zap/zaptest"
)

type S = *tokens.Stream

func newCorpus(t *testing.T) (*Corpus[S], string) {
	t.Helper()
	queue := t.TempDir()
	return New[S](queue, tokens.NewFactory(nil), zaptest.NewLogger(t)), queue
}

func transcript(t *testing.T, s string) *input.Input[S] {
	t.Helper()
	in, err := input.ParseText[S](tokens.NewFactory(nil), []byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func writeSeeds(t *testing.T, dir string, n int) {
	t.Helper()
	for i := range n {
		name := filepath.Join(dir, fmt.Sprintf("seed%02d", i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("HELO host%d\r\nQUIT\r\n", i)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// staging files of atomic writers are never loaded
	os.WriteFile(filepath.Join(dir, ".seed.tmp"), []byte("NOOP\r\n"), 0o644)
}

func TestAddStoresAndDeduplicates(t *testing.T) {
	c, queue := newCorpus(t)
	added, err := c.Add(transcript(t, "EHLO x\r\n"))
	if err != nil || !added {
		t.Fatalf("added %v, %v", added, err)
	}
	if added, _ := c.Add(transcript(t, "EHLO x\r\n")); added {
		t.Error("duplicate added")
	}
	files, _ := listFiles(queue)
	if len(files) != 1 || c.Count() != 1 {
		t.Fatalf("%d files, %d entries", len(files), c.Count())
	}
	stored, err := input.Load[S](tokens.NewFactory(nil), files[0])
	if err != nil || stored.Len() != 1 {
		t.Fatalf("stored %v, %v", stored, err)
	}

	// the watcher reports our own file back
	if imported, err := c.Import(files[0]); err != nil || imported {
		t.Errorf("re-imported own entry: %v, %v", imported, err)
	}
}

func TestNextIsRoundRobin(t *testing.T) {
	c, _ := newCorpus(t)
	if _, _, ok := c.Next(); ok {
		t.Fatal("empty corpus yielded an entry")
	}
	if _, ok := c.Current(); ok {
		t.Fatal("current set before first selection")
	}
	for _, s := range []string{"A\n", "B\n", "C\n"} {
		c.Add(transcript(t, s))
	}
	var got []int
	for range 5 {
		id, _, _ := c.Next()
		got = append(got, id)
	}
	if fmt.Sprint(got) != "[0 1 2 0 1]" {
		t.Errorf("order %v", got)
	}
	if cur, ok := c.Current(); !ok || cur != 1 {
		t.Errorf("current %d %v", cur, ok)
	}
	if _, err := c.Get(3); err == nil {
		t.Error("out of range get")
	}
}

func TestImportFromSibling(t *testing.T) {
	c, queue := newCorpus(t)
	sibling := filepath.Join(queue, "0b7c")
	if err := transcript(t, "RSET\r\n").Store(sibling); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Import(sibling); err != nil || !ok {
		t.Fatalf("import %v, %v", ok, err)
	}
	if ok, _ := c.Import(sibling); ok {
		t.Error("imported twice")
	}
	if c.Count() != 1 {
		t.Errorf("count %d", c.Count())
	}
}

func TestLoadSeedsSharded(t *testing.T) {
	seeds := t.TempDir()
	writeSeeds(t, seeds, 7)

	total := 0
	for pos := range 3 {
		c, queue := newCorpus(t)
		n, err := c.LoadSeeds(context.Background(), seeds, Shard{Position: pos, Count: 3})
		if err != nil {
			t.Fatal(err)
		}
		files, _ := listFiles(queue)
		if n != c.Count() || len(files) != n {
			t.Errorf("position %d: loaded %d, count %d, stored %d", pos, n, c.Count(), len(files))
		}
		total += n
	}
	if total != 7 {
		t.Errorf("shards cover %d of 7 seeds", total)
	}
}

func TestLoadQueueResumes(t *testing.T) {
	c, queue := newCorpus(t)
	writeSeeds(t, queue, 3)
	n, err := c.LoadQueue(context.Background(), Shard{Count: 1})
	if err != nil || n != 3 {
		t.Fatalf("loaded %d, %v", n, err)
	}
	files, _ := listFiles(queue)
	if len(files) != 3 {
		t.Errorf("queue rewritten: %d files", len(files))
	}
	if ok, _ := c.Import(files[0]); ok {
		t.Error("re-imported a resumed entry")
	}
}

func TestLoadSeedsArchive(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available")
	}
	seeds := t.TempDir()
	writeSeeds(t, seeds, 2)
	blob := filepath.Join(t.TempDir(), "seeds.tar.gz")
	if out, err := exec.Command("tar", "-czf", blob, "-C", seeds, ".").CombinedOutput(); err != nil {
		t.Fatalf("tar: %v: %s", err, out)
	}
	c, _ := newCorpus(t)
	n, err := c.LoadSeeds(context.Background(), blob, Shard{Count: 1})
	if err != nil || n != 2 {
		t.Fatalf("loaded %d, %v", n, err)
	}
}
