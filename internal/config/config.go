// Package config loads the demo's settings file and holds the settings that
// can change while it runs.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"mini-gfx/internal/render"
)

type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Log      Log      `toml:"log"`
}

type Window struct {
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	Title    string `toml:"title"`
	VSync    bool   `toml:"vsync"`
	FPSLimit int    `toml:"fps_limit"` // 0 = unlimited
}

type Renderer struct {
	QuadCapacity     int        `toml:"quad_capacity"`
	ShadowCopy       bool       `toml:"shadow_copy"`
	CheckGLErrors    bool       `toml:"check_gl_errors"`
	ProgramCacheSize int        `toml:"program_cache_size"`
	ClearColor       [4]float32 `toml:"clear_color"`
}

type Log struct {
	Level string `toml:"level"`
	// Dir holds the rotating log file; empty means the user config dir.
	Dir string `toml:"dir"`
}

func Default() Config {
	return Config{
		Window: Window{Width: 900, Height: 600, Title: "mini-gfx", FPSLimit: 120},
		Renderer: Renderer{
			QuadCapacity:     render.DefaultQuadCapacity,
			ProgramCacheSize: 32,
			ClearColor:       [4]float32{0.1, 0.1, 0.12, 1},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg, keeping the fields data leaves out,
// and clamps the result.
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.clamp()
	return nil
}

func (c *Config) clamp() {
	c.Window.Width = max(c.Window.Width, 64)
	c.Window.Height = max(c.Window.Height, 64)
	c.Window.FPSLimit = clampFPS(c.Window.FPSLimit)
	// Indices are 16-bit.
	c.Renderer.QuadCapacity = max(1, min(c.Renderer.QuadCapacity, render.MaxQuadCapacity))
	c.Renderer.ProgramCacheSize = max(c.Renderer.ProgramCacheSize, 8)
	for i, v := range c.Renderer.ClearColor {
		c.Renderer.ClearColor[i] = max(0, min(v, 1))
	}
}

// Encode returns cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
