package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Lightweight per-frame CPU timers for the renderer phases and the frame
// loop around them.

// Timers accumulates durations and call counts by name.
type Timers struct {
	mu     sync.Mutex
	totals map[string]time.Duration
	calls  map[string]int
}

func NewTimers() *Timers {
	return &Timers{totals: make(map[string]time.Duration), calls: make(map[string]int)}
}

// Default collects what the package-level functions record.
var Default = NewTimers()

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer t.Track("render.Sort")()
func (t *Timers) Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		t.mu.Lock()
		t.totals[name] += d
		t.calls[name]++
		t.mu.Unlock()
	}
}

// ResetFrame clears current per-frame totals. Call at the start of each frame.
func (t *Timers) ResetFrame() {
	t.mu.Lock()
	clear(t.totals)
	clear(t.calls)
	t.mu.Unlock()
}

// Snapshot returns a copy of current per-frame totals.
func (t *Timers) Snapshot() map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]time.Duration, len(t.totals))
	for k, v := range t.totals {
		out[k] = v
	}
	return out
}

// Calls returns how many times name was tracked this frame.
func (t *Timers) Calls(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[name]
}

// TopN formats the n largest totals of the current frame, largest first.
// Example: "render.Visit:4.2ms, render.Sort:0.3ms"
func (t *Timers) TopN(n int) string {
	ss := t.Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur != list[j].dur {
			return list[i].dur > list[j].dur
		}
		return list[i].name < list[j].name
	})
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for _, p := range list[:n] {
		parts = append(parts, p.name+":"+formatMs(p.dur))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops it when zero.
func formatMs(d time.Duration) string {
	tenths := d.Microseconds() / 100
	s := strconv.FormatInt(tenths/10, 10)
	if f := tenths % 10; f != 0 {
		s += "." + strconv.FormatInt(f, 10)
	}
	return s + "ms"
}

func Track(name string) func() { return Default.Track(name) }

func ResetFrame() { Default.ResetFrame() }

func Snapshot() map[string]time.Duration { return Default.Snapshot() }

func TopN(n int) string { return Default.TopN(n) }
