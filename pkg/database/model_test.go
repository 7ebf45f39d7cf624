package database

import "testing"

func TestMetricValueScan(t *testing.T) {
	m := Metric{"executions": 1200, "exit_kind": "crash"}
	v, err := m.Value()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   any
	}{
		{"bytes", v},
		{"string", string(v.([]byte))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Metric
			if err := got.Scan(tt.in); err != nil {
				t.Fatal(err)
			}
			if got["exit_kind"] != "crash" || got["executions"] != float64(1200) {
				t.Errorf("got %v", got)
			}
		})
	}

	var got Metric
	if err := got.Scan(42); err == nil {
		t.Error("scanned an int")
	}
	if err := got.Scan(nil); err != nil || got != nil {
		t.Errorf("nil scan: %v %v", got, err)
	}
	if v, _ := Metric(nil).Value(); v != nil {
		t.Error("nil metric produced a value")
	}
}

func TestNewCrash(t *testing.T) {
	c := NewCrash("d41d8cd98f00b204e9800998ecf8427e", KindTimeout, "/out/crashes/timeout-d41d", "/usr/sbin/exim", 3, 0, nil)
	if c.Kind != KindTimeout || c.Core != 3 || c.CreatedAt.IsZero() {
		t.Errorf("crash = %+v", c)
	}
}
