// Package coalescer implements the Update Coalescer: rate-limited
// publication of a Framebuffer's render to an external Surface, with a
// bell-triggered inverted "flash" and a truncation policy for oversized
// payloads.
package coalescer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shellmux/internal/framebuffer"
	"shellmux/internal/surface"
)

// Config tunes the coalescer's rate limit and the bell flash.
type Config struct {
	// MinInterval is the minimum time between two publishes that were not
	// forced by a bell or a final render.
	MinInterval time.Duration
	// FlashHold is how long the inverted bell frame stays up before the
	// normal frame replaces it.
	FlashHold time.Duration
	// MaxPayloadSize is the surface's per-message size budget.
	MaxPayloadSize int
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinInterval:    100 * time.Millisecond,
		FlashHold:      150 * time.Millisecond,
		MaxPayloadSize: 1900,
	}
}

const truncationNotice = "... output truncated, use [PGUP]/[PGDN] to scroll"

// Coalescer publishes a single Framebuffer to a single previously-sent
// Surface object, editing it in place.
type Coalescer struct {
	sf  surface.Surface
	ref surface.Ref
	fb  *framebuffer.Framebuffer
	cfg Config
	log *slog.Logger

	mu           sync.Mutex
	lastRenderAt time.Time
	publishing   bool
	pending      bool
	bellPending  bool
	active       bool
	timer        *time.Timer
}

// New builds a Coalescer targeting an already-sent surface object ref.
func New(sf surface.Surface, ref surface.Ref, fb *framebuffer.Framebuffer, cfg Config, log *slog.Logger) *Coalescer {
	if log == nil {
		log = slog.Default()
	}
	return &Coalescer{sf: sf, ref: ref, fb: fb, cfg: cfg, log: log, active: true}
}

// Active reports whether the surface object is still believed to exist.
func (c *Coalescer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Notify is called by the session's reader after a Framebuffer mutation.
// It schedules or performs a publish per the rate budget; a bell forces an
// immediate flash-then-normal publish, coalescing with any bell that fires
// while one is already pending.
func (c *Coalescer) Notify(ctx context.Context, bell bool) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.pending = true
	if bell {
		c.bellPending = true
	}
	if c.publishing {
		c.mu.Unlock()
		return
	}

	wait := c.cfg.MinInterval - time.Since(c.lastRenderAt)
	if c.bellPending || wait <= 0 {
		c.publishing = true
		c.mu.Unlock()
		go c.runPublishLoop(ctx)
		return
	}

	if c.timer == nil {
		c.timer = time.AfterFunc(wait, func() { c.fireScheduled(ctx) })
	}
	c.mu.Unlock()
}

func (c *Coalescer) fireScheduled(ctx context.Context) {
	c.mu.Lock()
	c.timer = nil
	if !c.active || c.publishing {
		c.mu.Unlock()
		return
	}
	c.publishing = true
	c.mu.Unlock()
	c.runPublishLoop(ctx)
}

// runPublishLoop drains pending/bellPending, republishing as long as a new
// mutation arrived while the previous publish was in flight, preserving
// "at most one publish in flight per Session at a time".
func (c *Coalescer) runPublishLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		bell := c.bellPending
		c.bellPending = false
		c.pending = false
		c.mu.Unlock()

		if bell {
			c.publishFlash(ctx)
		}
		c.publishNormal(ctx)

		c.mu.Lock()
		c.lastRenderAt = time.Now()
		if !c.pending {
			c.publishing = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *Coalescer) publishFlash(ctx context.Context) {
	rows := c.fb.Render(true)
	flashed := make([]string, len(rows))
	for i, r := range rows {
		flashed[i] = "\x1b[7m" + r + "\x1b[27m"
	}
	c.publish(ctx, strings.Join(flashed, "\n"))
	time.Sleep(c.cfg.FlashHold)
}

func (c *Coalescer) publishNormal(ctx context.Context) {
	c.publish(ctx, strings.Join(c.fb.Render(true), "\n"))
}

// PublishFinal forces a last publish (e.g. process EOF or session close)
// with caller-supplied content, and marks the coalescer inactive.
func (c *Coalescer) PublishFinal(ctx context.Context, content string) {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	if len(content) > c.cfg.MaxPayloadSize {
		content = truncate(content, c.cfg.MaxPayloadSize)
	}
	c.publish(ctx, content)
}

func (c *Coalescer) publish(ctx context.Context, payload string) {
	if len(payload) > c.cfg.MaxPayloadSize {
		payload = strings.Join(c.fb.Render(false), "\n")
	}
	if len(payload) > c.cfg.MaxPayloadSize {
		payload = truncate(payload, c.cfg.MaxPayloadSize)
	}

	outcome, err := c.sf.Edit(ctx, c.ref, payload)
	if err != nil {
		c.log.Warn("coalescer: surface edit failed", "error", err)
		return
	}
	if outcome == surface.EditErr {
		c.log.Warn("coalescer: surface edit failed")
		return
	}
	if outcome == surface.EditGone {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}
}

func truncate(payload string, limit int) string {
	lines := strings.Split(payload, "\n")
	for len(lines) > 1 {
		candidate := strings.Join(append(append([]string{}, lines...), truncationNotice), "\n")
		if len(candidate) <= limit {
			return candidate
		}
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n" + truncationNotice
}
