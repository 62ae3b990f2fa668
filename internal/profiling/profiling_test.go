package profiling

import (
	"testing"
	"time"
)

func TestTrackAccumulates(t *testing.T) {
	tm := NewTimers()
	for range 3 {
		stop := tm.Track("render.Flush")
		stop()
	}
	if got := tm.Calls("render.Flush"); got != 3 {
		t.Fatalf("calls: got %d, want 3", got)
	}
	if _, ok := tm.Snapshot()["render.Flush"]; !ok {
		t.Fatalf("snapshot missing render.Flush")
	}

	tm.ResetFrame()
	if len(tm.Snapshot()) != 0 || tm.Calls("render.Flush") != 0 {
		t.Fatalf("reset left totals behind")
	}
}

func TestTopNOrdering(t *testing.T) {
	tm := NewTimers()
	tm.totals["a"] = 1500 * time.Microsecond
	tm.totals["b"] = 4 * time.Millisecond
	tm.totals["c"] = 200 * time.Microsecond

	if got, want := tm.TopN(2), "b:4ms, a:1.5ms"; got != want {
		t.Fatalf("TopN(2) = %q, want %q", got, want)
	}
	if got, want := tm.TopN(10), "b:4ms, a:1.5ms, c:0.2ms"; got != want {
		t.Fatalf("TopN(10) = %q, want %q", got, want)
	}
}
