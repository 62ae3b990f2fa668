package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu/gputest"
	"mini-gfx/internal/log"
	"mini-gfx/internal/profiling"
	"mini-gfx/internal/render"
)

type fakeWindow struct {
	frames int
	swaps  int
	w, h   int
}

func (w *fakeWindow) ShouldClose() bool              { return w.swaps >= w.frames }
func (w *fakeWindow) SwapBuffers()                   { w.swaps++ }
func (w *fakeWindow) GetFramebufferSize() (int, int) { return w.w, w.h }

type quadScene struct {
	updates int
	dts     []float64
	slow    time.Duration
}

func (s *quadScene) Update(dt float64) {
	s.updates++
	s.dts = append(s.dts, dt)
	time.Sleep(s.slow)
}

func (s *quadScene) Submit(r *render.Renderer) {
	q := render.RectQuad(10, 10, 20, 20, render.White, 0, 0, 1, 1)
	r.AddCommand(render.NewQuadCommand(0, nil, 1, render.BlendAlphaPremultiplied, []render.Quad{q}, mgl32.Ident4()))
}

func newTestApp(t *testing.T, win *fakeWindow, scene Scene, opts Options) (*App, *gputest.Device) {
	t.Helper()
	dev := gputest.New()
	timers := profiling.NewTimers()
	r := render.New(dev, render.Options{Logger: log.Discard(), Timers: timers})
	require.NoError(t, r.InitGLView())
	opts.Timers = timers
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	a := New(win, r, scene, opts)
	a.fpsLimiter.limit = func() int { return 0 }
	return a, dev
}

func TestRunDrawsUntilClosed(t *testing.T) {
	win := &fakeWindow{frames: 3, w: 640, h: 480}
	scene := &quadScene{}
	polls := 0
	a, dev := newTestApp(t, win, scene, Options{PollEvents: func() { polls++ }})
	a.Run()

	assert.Equal(t, 3, a.Frames())
	assert.Equal(t, 3, polls)
	assert.Equal(t, 3, scene.updates)
	assert.Equal(t, 3, dev.Clears)
	assert.Len(t, dev.Draws, 3)
	assert.Equal(t, [][4]int32{{0, 0, 640, 480}}, dev.Viewports, "viewport only set on size change")
	for _, dt := range scene.dts {
		assert.GreaterOrEqual(t, dt, 0.0)
	}
}

func TestResizeUpdatesProjection(t *testing.T) {
	win := &fakeWindow{frames: 1, w: 200, h: 100}
	a, dev := newTestApp(t, win, &quadScene{}, Options{})
	a.Tick()
	win.w, win.h = 400, 300
	a.Tick()

	assert.Equal(t, [][4]int32{{0, 0, 200, 100}, {0, 0, 400, 300}}, dev.Viewports)
	assert.Equal(t, mgl32.Ortho(0, 400, 0, 300, -1024, 1024), a.renderer.Projection())
	assert.True(t, a.renderer.CheckVisibility(mgl32.Translate3D(350, 250, 0), mgl32.Vec2{10, 10}))
	assert.False(t, a.renderer.CheckVisibility(mgl32.Translate3D(450, 250, 0), mgl32.Vec2{10, 10}))
}

func TestSlowFrameIsLogged(t *testing.T) {
	var buf bytes.Buffer
	win := &fakeWindow{frames: 1, w: 64, h: 64}
	scene := &quadScene{slow: 5 * time.Millisecond}
	a, _ := newTestApp(t, win, scene, Options{
		SlowFrame: time.Millisecond,
		Logger:    log.NewWithWriter(&buf, "warn"),
	})
	a.Tick()

	out := buf.String()
	assert.True(t, strings.Contains(out, `"msg":"slow frame"`), out)
	assert.True(t, strings.Contains(out, "app.Update"), out)
}

func TestFPSLimiterPaces(t *testing.T) {
	f := &FPSLimiter{limit: func() int { return 200 }}
	start := time.Now()
	for range 5 {
		f.Wait()
	}
	// Five frames at 5ms each.
	if d := time.Since(start); d < 20*time.Millisecond {
		t.Fatalf("5 frames at 200 FPS took %v", d)
	}

	f.limit = func() int { return 0 }
	start = time.Now()
	f.Wait()
	if d := time.Since(start); d > 5*time.Millisecond {
		t.Fatalf("unlimited Wait blocked for %v", d)
	}
	if !f.next.IsZero() {
		t.Fatalf("unlimited Wait kept a deadline")
	}
}
