package shader

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/log"
)

var ErrUnknownProgram = errors.New("shader: unknown program")

// DefaultCacheSize bounds a Cache created with a non-positive size.
const DefaultCacheSize = 32

// Cache holds linked programs by name. Programs built from registered
// sources are compiled on first use and again after being evicted; an
// evicted program releases its native objects, so callers must fetch
// programs from the cache rather than hold on to them across frames.
type Cache struct {
	dev      gpu.Device
	lg       *log.Logger
	programs *expirable.LRU[string, *Program]
	sources  map[string]Source
	cancel   func()
}

func NewCache(dev gpu.Device, size int, lg *log.Logger) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &Cache{dev: dev, lg: lg, sources: make(map[string]Source)}
	c.programs = expirable.NewLRU[string, *Program](size, func(key string, p *Program) {
		c.lg.Debug("program evicted", slog.String("key", key))
		p.Release()
	}, 0)
	return c
}

// Register records the sources for key without compiling them. A program
// already cached under key is dropped.
func (c *Cache) Register(key string, src Source) {
	c.sources[key] = src
	c.programs.Remove(key)
}

// Add caches a program built elsewhere. It is not rebuilt if evicted.
func (c *Cache) Add(key string, p *Program) {
	c.programs.Add(key, p)
}

// Get returns the program cached under key, compiling it from registered
// sources if needed.
func (c *Cache) Get(key string) (*Program, error) {
	if p, ok := c.programs.Get(key); ok {
		return p, nil
	}
	src, ok := c.sources[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, key)
	}
	p, err := NewWithSources(c.dev, src.Vertex, src.Fragment, WithLogger(c.lg), WithDefines(src.Defines...))
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", key, err)
	}
	c.programs.Add(key, p)
	c.lg.Debug("program built", slog.String("key", key), slog.Int("uniforms", len(p.uniforms)))
	return p, nil
}

// MustGet is Get for programs whose sources ship with the binary.
func (c *Cache) MustGet(key string) *Program {
	p, err := c.Get(key)
	if err != nil {
		panic(err)
	}
	return p
}

// LoadDefaults registers and builds the built-in programs.
func (c *Cache) LoadDefaults() error {
	var errs []error
	for key, src := range defaultSources {
		c.Register(key, src)
		if _, err := c.Get(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReloadAll rebuilds every cached program in the current context. Programs
// that fail to rebuild are dropped from the cache.
func (c *Cache) ReloadAll() error {
	var errs []error
	for _, key := range c.programs.Keys() {
		p, ok := c.programs.Peek(key)
		if !ok {
			continue
		}
		if err := p.Reload(); err != nil {
			errs = append(errs, fmt.Errorf("program %q: %w", key, err))
			c.programs.Remove(key)
		}
	}
	return errors.Join(errs...)
}

// Listen reloads the cached programs whenever lc reports a recreated
// context.
func (c *Cache) Listen(lc *gpu.Lifecycle) {
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = lc.OnRecreate(func() {
		if err := c.ReloadAll(); err != nil {
			c.lg.Error("program reload failed", slog.Any("error", err))
		}
	})
}

func (c *Cache) Len() int { return c.programs.Len() }

// Purge releases every cached program and stops listening for context
// recreation. Registered sources are kept.
func (c *Cache) Purge() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.programs.Purge()
}
