package monitor

import (
	"context"
	"testing"
)

func TestDefault_ReadHost(t *testing.T) {
	var s State
	for _, r := range Default() {
		if err := r.Read(context.Background(), &s); err != nil {
			t.Fatalf("%s: %v", r.Name(), err)
		}
	}

	if s.CPU.UsagePercent < 0 || s.CPU.UsagePercent > 100 || len(s.CPU.Cores) == 0 {
		t.Errorf("invalid cpu reading %+v", s.CPU)
	}
	if s.Memory.TotalBytes == 0 || s.Memory.UsedBytes > s.Memory.TotalBytes {
		t.Errorf("invalid memory reading %+v", s.Memory)
	}
	if s.Processes <= 0 {
		t.Errorf("expected running processes, got %d", s.Processes)
	}
	if s.Self.RSSBytes == 0 {
		t.Error("expected the test binary to have resident memory")
	}
}

func TestDefault_Names(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Default() {
		if seen[r.Name()] {
			t.Errorf("duplicate reader %s", r.Name())
		}
		seen[r.Name()] = true
	}
	for _, want := range []string{"cpu", "memory", "processes", "self"} {
		if !seen[want] {
			t.Errorf("missing reader %s", want)
		}
	}
}

func TestReaders_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// gopsutil ignores ctx for some sources; only a panic would be a failure
	var s State
	for _, r := range Default() {
		_ = r.Read(ctx, &s)
	}
}
