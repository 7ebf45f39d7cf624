package launcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"desockfuzz/config"

	"go.uber.org/zap/zaptest"
)

func TestParseCores(t *testing.T) {
	tests := []struct {
		list    string
		want    []int
		wantErr bool
	}{
		{"0", []int{0}, false},
		{"0-3", []int{0, 1, 2, 3}, false},
		{"5,1-2", []int{1, 2, 5}, false},
		{" 2 , 2-3 ", []int{2, 3}, false},
		{"3-1", nil, true},
		{"a", nil, true},
		{"-1", nil, true},
		{"1,", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.list, func(t *testing.T) {
			got, err := ParseCores(tt.list)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	all, err := ParseCores("all")
	if err != nil || len(all) != runtime.NumCPU() {
		t.Errorf("all = %v, %v", all, err)
	}
}

func TestPlanRoundRobin(t *testing.T) {
	workers := Plan([]int{2, 4, 6}, []string{"./a", "./b"})
	binaries := []string{workers[0].Binary, workers[1].Binary, workers[2].Binary}
	if !slices.Equal(binaries, []string{"./a", "./b", "./a"}) {
		t.Errorf("binaries %v", binaries)
	}
	for i, w := range workers {
		if w.Position != i || w.NumCores != 3 {
			t.Errorf("worker %d: %+v", i, w)
		}
	}
}

func TestWorkerArgs(t *testing.T) {
	l := New("/bin/desockfuzz", config.CampaignConfig{
		OutputDir: "out",
		Libdesock: "/lib/libdesock.so",
		DictPath:  "smtp.dict",
		Timeout:   2 * time.Second,
		Command:   []string{"./server", "-p", "25"},
	}, zaptest.NewLogger(t))
	got := strings.Join(l.workerArgs(Worker{Core: 3, Position: 1, NumCores: 2, Binary: "./alt"}), " ")
	want := "worker --core 3 --position 1 --num-cores 2 --binary ./alt --output out --libdesock /lib/libdesock.so --dict smtp.dict --timeout 2s -- ./server -p 25"
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestOffsetPort(t *testing.T) {
	if got, _ := offsetPort("127.0.0.1:9100", 3); got != "127.0.0.1:9103" {
		t.Errorf("got %s", got)
	}
	if got, _ := offsetPort(":0", 3); got != ":0" {
		t.Errorf("got %s", got)
	}
	if _, err := offsetPort("9100", 1); err == nil {
		t.Error("accepted address without port")
	}
}

func TestParseStatsLog(t *testing.T) {
	log := strings.Join([]string{
		`{"event":"stats","core":1,"executions":10,"corpus":3,"crashes":0,"timeouts":0}`,
		`not json`,
		`{"event":"stats","core":2,"executions":99,"corpus":1,"crashes":0,"timeouts":0}`,
		`{"event":"stats","core":1,"executions":20,"corpus":4,"crashes":1,"timeouts":2}`,
	}, "\n")
	attrs, err := parseStatsLog(strings.NewReader(log), 1, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]any{}
	for _, kv := range attrs.Attributes() {
		got[string(kv.Key)] = kv.Value.AsInterface()
	}
	if got["fuzz.executions"] != int64(20) || got["fuzz.crashes"] != int64(1) || got["fuzz.timeouts"] != int64(2) {
		t.Errorf("attributes %v", got)
	}

	none, err := parseStatsLog(strings.NewReader(log), 7, zaptest.NewLogger(t))
	if err != nil || none != nil {
		t.Errorf("core without records: %v, %v", none, err)
	}
}

func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newLauncher(t *testing.T, exe string) *Launcher {
	l := New(exe, config.CampaignConfig{OutputDir: t.TempDir(), Command: []string{"true"}}, zaptest.NewLogger(t))
	l.Stdout, l.Stderr = nil, nil
	return l
}

func TestRunWaitsForWorkers(t *testing.T) {
	l := newLauncher(t, script(t, "exit 0"))
	if err := l.Run(context.Background(), Plan([]int{0, 1}, []string{"true"})); err != nil {
		t.Fatal(err)
	}
}

func TestRunReportsFailedWorkers(t *testing.T) {
	l := newLauncher(t, script(t, "exit 3"))
	err := l.Run(context.Background(), Plan([]int{0, 1}, []string{"true"}))
	if err == nil {
		t.Fatal("failure not reported")
	}
	if !strings.Contains(err.Error(), "core 0") || !strings.Contains(err.Error(), "core 1") {
		t.Errorf("err = %v", err)
	}
}

func TestRunInterruptsWorkers(t *testing.T) {
	l := newLauncher(t, script(t, "trap 'exit 0' INT\nwhile :; do sleep 0.1; done"))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	if err := l.Run(ctx, Plan([]int{0}, []string{"true"})); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed >= GracePeriod {
		t.Errorf("worker was killed after %v instead of exiting on SIGINT", elapsed)
	}
}
