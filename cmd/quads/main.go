// Command quads opens a window and draws a scene through the batching
// renderer: sprites, a grouped panel, meshes and a stats overlay.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/app"
	"mini-gfx/internal/config"
	"mini-gfx/internal/gpu"
	"mini-gfx/internal/log"
	"mini-gfx/internal/render"
	"mini-gfx/internal/shader"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "quads.toml", "settings file")
	sprites := flag.Int("sprites", 2000, "number of bouncing sprites")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config.Apply(cfg)
	lg := log.New(cfg.Log.Level, cfg.Log.Dir)

	if err := run(cfg, lg, *sprites); err != nil {
		lg.Error("quads failed", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *log.Logger, sprites int) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	window, err := setupWindow(cfg.Window)
	if err != nil {
		return err
	}
	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl init: %w", err)
	}
	lg.Info("OpenGL", slog.String("version", gl.GoStr(gl.GetString(gl.VERSION))))

	dev := gpu.NewGLDevice(lg, cfg.Renderer.CheckGLErrors)
	lc := gpu.NewLifecycle()

	programs := shader.NewCache(dev, cfg.Renderer.ProgramCacheSize, lg)
	if err := programs.LoadDefaults(); err != nil {
		return err
	}
	programs.Listen(lc)
	defer programs.Purge()

	r := render.New(dev, render.Options{
		QuadCapacity: cfg.Renderer.QuadCapacity,
		ShadowCopy:   cfg.Renderer.ShadowCopy,
		Lifecycle:    lc,
		Logger:       lg,
	})
	if err := r.InitGLView(); err != nil {
		return err
	}
	defer r.Dispose()

	scene, err := newScene(dev, lc, programs, r, lg, sprites)
	if err != nil {
		return err
	}
	defer scene.Release()

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyV:
			lg.Info("stats overlay", slog.Bool("on", config.ToggleStats()))
		case glfw.KeyP:
			scene.TogglePause()
		}
	})

	c := cfg.Renderer.ClearColor
	a := app.New(window, r, scene, app.Options{
		PollEvents: glfw.PollEvents,
		ClearColor: mgl32.Vec4{c[0], c[1], c[2], c[3]},
		SlowFrame:  16 * time.Millisecond,
		Logger:     lg,
	})
	a.Run()
	return nil
}

func setupWindow(cfg config.Window) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	return window, nil
}
