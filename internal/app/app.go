// Package app runs the frame loop around a render.Renderer.
package app

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/log"
	"mini-gfx/internal/profiling"
	"mini-gfx/internal/render"
)

// Window is the part of a platform window the loop needs. *glfw.Window
// satisfies it.
type Window interface {
	ShouldClose() bool
	SwapBuffers()
	GetFramebufferSize() (width, height int)
}

// Scene fills the renderer's queues once per frame.
type Scene interface {
	Update(dt float64)
	Submit(r *render.Renderer)
}

type Options struct {
	// PollEvents is called at the start of every frame, normally
	// glfw.PollEvents.
	PollEvents func()
	ClearColor mgl32.Vec4
	// SlowFrame is the duration over which a frame is logged with its
	// most expensive timers. Zero disables the check.
	SlowFrame time.Duration
	Logger    *log.Logger
	Timers    *profiling.Timers
}

type App struct {
	window   Window
	renderer *render.Renderer
	scene    Scene
	opts     Options
	timers   *profiling.Timers

	fpsLimiter *FPSLimiter
	start      time.Time
	lastTime   time.Time
	width      int
	height     int
	frames     int
}

func New(window Window, r *render.Renderer, scene Scene, opts Options) *App {
	if opts.PollEvents == nil {
		opts.PollEvents = func() {}
	}
	timers := opts.Timers
	if timers == nil {
		timers = profiling.Default
	}
	now := time.Now()
	return &App{
		window:     window,
		renderer:   r,
		scene:      scene,
		opts:       opts,
		timers:     timers,
		fpsLimiter: NewFPSLimiter(),
		start:      now,
		lastTime:   now,
	}
}

func (a *App) Run() {
	for !a.window.ShouldClose() {
		a.Tick()
	}
	a.opts.Logger.Info("frame loop done", slog.Int("frames", a.frames))
}

// Frames returns the number of frames drawn.
func (a *App) Frames() int { return a.frames }

// Tick runs one frame.
func (a *App) Tick() {
	a.timers.ResetFrame()
	startTick := time.Now()
	dt := startTick.Sub(a.lastTime).Seconds()
	a.lastTime = startTick

	func() { defer a.timers.Track("app.PollEvents")(); a.opts.PollEvents() }()
	a.resize()

	func() { defer a.timers.Track("app.Update")(); a.scene.Update(dt) }()

	a.renderer.SetElapsed(float32(startTick.Sub(a.start).Seconds()))
	a.renderer.Clear(a.opts.ClearColor)
	func() { defer a.timers.Track("app.Submit")(); a.scene.Submit(a.renderer) }()
	a.renderer.Render()

	func() { defer a.timers.Track("app.SwapBuffers")(); a.window.SwapBuffers() }()
	a.frames++

	if d := time.Since(startTick); a.opts.SlowFrame > 0 && d > a.opts.SlowFrame {
		a.opts.Logger.Warn("slow frame",
			slog.Duration("duration", d),
			slog.String("top", a.timers.TopN(5)),
			slog.Any("stats", a.renderer.Stats()))
	}

	a.fpsLimiter.Wait()
}

// resize keeps the projection and culling viewport in step with the
// framebuffer. The projection maps pixels with the origin bottom left.
func (a *App) resize() {
	w, h := a.window.GetFramebufferSize()
	if w == a.width && h == a.height {
		return
	}
	a.width, a.height = w, h
	a.renderer.SetWinSize(float32(w), float32(h))
	a.renderer.SetProjection(mgl32.Ortho(0, float32(w), 0, float32(h), -1024, 1024))
	a.renderer.Viewport(w, h)
	a.opts.Logger.Debug("framebuffer resized", slog.Int("width", w), slog.Int("height", h))
}
