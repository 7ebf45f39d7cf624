package executor

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"desockfuzz/internal/shmem"

	"go.uber.org/zap/zaptest"
)

// pid that cannot exist, so stray kills land on ESRCH
const fakePID = 0x3fffffff

type coordinator struct {
	ctl *os.File // reads what the executor writes
	st  *os.File // writes what the executor reads
}

func newPipes(t *testing.T) (*channel, *coordinator) {
	t.Helper()
	ctlR, ctlW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stR, stW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctlR.Close()
		stW.Close()
	})
	return &channel{ctl: ctlW, st: stR}, &coordinator{ctl: ctlR, st: stW}
}

func (c *coordinator) send(t *testing.T, words ...uint32) {
	t.Helper()
	for _, w := range words {
		var buf [4]byte
		binary.NativeEndian.PutUint32(buf[:], w)
		if _, err := c.st.Write(buf[:]); err != nil {
			t.Error(err)
		}
	}
}

func (c *coordinator) recv() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.ctl, buf[:]); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

type rawInput string

func (r rawInput) SerializeInto(buf []byte) int { return copy(buf, r) }

func TestHandshake(t *testing.T) {
	const hello = 0x41464c01
	tests := []struct {
		name    string
		words   []uint32
		blob    []byte
		mapSize int
		acked   bool
		err     error
	}{
		{"map size", []uint32{hello, fsOptMapSize, 1024, hello}, nil, 1024, true, nil},
		{"no options", []uint32{hello, 0, hello}, nil, 0, true, nil},
		{"auto dictionary", []uint32{hello, fsOptAutoDict, 5}, []byte("\x04HELO"), 0, true, nil},
		{"both options", []uint32{hello, fsOptMapSize | fsOptAutoDict, 4096, 2}, []byte("ab"), 4096, true, nil},
		{"instrumentation error", []uint32{0xeffe0002}, nil, 0, false, ErrInstrumentation},
		{"old forkserver", []uint32{0x12345678}, nil, 0, false, ErrIncompatible},
		{"magic band end", []uint32{fsMagicLast}, nil, 0, false, ErrUnsupportedVersion},
		{"version zero", []uint32{fsMagicBase}, nil, 0, false, ErrUnsupportedVersion},
		{"desync", []uint32{hello, 0, hello + 1}, nil, 0, true, ErrDesync},
		{"truncated", []uint32{hello}, nil, 0, true, ErrShortIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, co := newPipes(t)
			co.send(t, tt.words...)
			if tt.blob != nil {
				co.st.Write(tt.blob)
				co.send(t, hello)
			}
			co.st.Close()

			hs, err := doHandshake(ch)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
			} else if err != nil {
				t.Fatal(err)
			} else if hs.mapSize != tt.mapSize || hs.version != 1 {
				t.Errorf("handshake = %+v", hs)
			}

			ch.ctl.Close()
			ack, err := co.recv()
			if !tt.acked {
				if err == nil {
					t.Errorf("acknowledged with %#x", ack)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ack != hello^0xffffffff {
				t.Errorf("ack = %#x", ack)
			}
		})
	}
}

func TestIncompatibleMessage(t *testing.T) {
	ch, co := newPipes(t)
	co.send(t, 0x41464e00)
	_, err := doHandshake(ch)
	if !errors.Is(err, ErrIncompatible) || !strings.Contains(err.Error(), "incompatible") {
		t.Fatalf("err = %v", err)
	}
}

func readyExecutor(t *testing.T, timeout time.Duration) (*Executor, *coordinator) {
	t.Helper()
	ch, co := newPipes(t)
	buf, err := shmem.NewPacketBuffer(make([]byte, 4096))
	if err != nil {
		t.Fatal(err)
	}
	e := newExecutor(ch, buf, timeout, zaptest.NewLogger(t))
	e.state = Ready
	t.Cleanup(func() { e.Close() })
	return e, co
}

func TestRunClassification(t *testing.T) {
	tests := []struct {
		name   string
		status uint32
		kind   ExitKind
		alive  bool
	}{
		{"exited", 0, Ok, false},
		{"exit code", 1 << 8, Ok, false},
		{"segfault", 11, Crash, false},
		{"abort with core", 6 | 0x80, Crash, false},
		{"stopped", 0x137f, Ok, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, co := readyExecutor(t, time.Second)
			co.send(t, fakePID, tt.status)
			kind, err := e.Run(rawInput("EHLO x\r\nQUIT\r\n"))
			if err != nil {
				t.Fatal(err)
			}
			if kind != tt.kind {
				t.Errorf("kind = %s, want %s", kind, tt.kind)
			}
			if e.child.present() != tt.alive {
				t.Errorf("child tracked = %v", e.child.present())
			}
			if flag, err := co.recv(); err != nil || flag != 0 {
				t.Errorf("flag = %d, %v", flag, err)
			}
			if string(e.Payload()) != "EHLO x\r\nQUIT\r\n" {
				t.Errorf("payload = %q", e.Payload())
			}
			if e.Executions() != 1 || e.State() != Ready {
				t.Errorf("executions %d state %s", e.Executions(), e.State())
			}
		})
	}
}

func TestRunInvalidPID(t *testing.T) {
	for _, pid := range []uint32{0, 0xffffffff} {
		e, co := readyExecutor(t, time.Second)
		co.send(t, pid)
		if _, err := e.Run(rawInput("")); !errors.Is(err, ErrInvalidPID) {
			t.Fatalf("pid %#x: err = %v", pid, err)
		}
		if e.State() != Fatal {
			t.Errorf("state = %s", e.State())
		}
		if _, err := e.Run(rawInput("")); !errors.Is(err, ErrNotReady) {
			t.Errorf("ran after a fatal error: %v", err)
		}
	}
}

func TestRunTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	e, co := readyExecutor(t, 100*time.Millisecond)

	flags := make(chan uint32, 2)
	go func() {
		flag, err := co.recv()
		if err != nil {
			return
		}
		flags <- flag
		cmd := exec.Command("sleep", "30")
		if err := cmd.Start(); err != nil {
			t.Error(err)
			return
		}
		co.send(t, uint32(cmd.Process.Pid))
		cmd.Wait()
		co.send(t, 9)

		flag, err = co.recv()
		if err != nil {
			return
		}
		flags <- flag
		co.send(t, fakePID, 0)
	}()

	start := time.Now()
	kind, err := e.Run(rawInput("DATA\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if kind != Timeout {
		t.Fatalf("kind = %s", kind)
	}
	if e.child.present() {
		t.Errorf("reaped child %d still tracked", e.child.pid)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}

	kind, err = e.Run(rawInput("QUIT\r\n"))
	if err != nil || kind != Ok {
		t.Fatalf("second run: %s, %v", kind, err)
	}
	if first, second := <-flags, <-flags; first != 0 || second != 1 {
		t.Errorf("timeout flags = %d, %d", first, second)
	}
}

func TestReadWordTimedFinishesPartialWord(t *testing.T) {
	ch, co := newPipes(t)
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], 0xcafe)
	co.st.Write(buf[:2])
	go func() {
		time.Sleep(150 * time.Millisecond)
		co.st.Write(buf[2:])
	}()
	v, ok, err := ch.readWordTimed(20 * time.Millisecond)
	if err != nil || !ok || v != 0xcafe {
		t.Fatalf("got %#x, %v, %v", v, ok, err)
	}
}

func TestChildKillIgnoresMissingProcess(t *testing.T) {
	var c child
	if err := c.kill(); err != nil {
		t.Fatal(err)
	}
	c.set(fakePID)
	if err := c.kill(); err != nil {
		t.Fatal(err)
	}
	c.clear()
	if c.present() {
		t.Error("child still tracked")
	}
}

func TestLaunchTargetWithoutForkserver(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	seg, err := shmem.NewSegment(shmem.MapSize)
	if err != nil {
		t.Skipf("System V shared memory unavailable: %v", err)
	}
	defer seg.Close()

	_, err = Launch(Options{
		Program:     truePath,
		Coverage:    seg,
		InitTimeout: 5 * time.Second,
	}, shmem.NewCoverageMap(seg.Bytes()), zaptest.NewLogger(t))
	if !errors.Is(err, ErrShortIO) {
		t.Fatalf("err = %v", err)
	}
}
