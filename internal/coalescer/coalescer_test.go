package coalescer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"shellmux/internal/framebuffer"
	"shellmux/internal/surface"
)

type fakeSurface struct {
	mu    sync.Mutex
	edits []string
	gone  bool
}

func (f *fakeSurface) Send(ctx context.Context, content string) (surface.Ref, error) {
	return "ref", nil
}

func (f *fakeSurface) Edit(ctx context.Context, ref surface.Ref, content string) (surface.EditOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone {
		return surface.EditGone, nil
	}
	f.edits = append(f.edits, content)
	return surface.EditOK, nil
}

func (f *fakeSurface) Delete(ctx context.Context, ref surface.Ref) error { return nil }

func (f *fakeSurface) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func TestBellForcesImmediateFlashThenNormal(t *testing.T) {
	fb := framebuffer.New(10, 3, 100)
	sf := &fakeSurface{}
	c := New(sf, "ref", fb, Config{MinInterval: time.Hour, FlashHold: 20 * time.Millisecond, MaxPayloadSize: 1900}, nil)

	c.Notify(context.Background(), true)

	deadline := time.Now().Add(500 * time.Millisecond)
	for sf.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := sf.count(); got != 2 {
		t.Fatalf("edit count = %d, want 2 (flash then normal)", got)
	}
	if !strings.Contains(sf.edits[0], "\x1b[7m") {
		t.Errorf("first edit should be the inverted flash frame")
	}
}

func TestRateLimitDefersNonBellPublish(t *testing.T) {
	fb := framebuffer.New(10, 3, 100)
	sf := &fakeSurface{}
	c := New(sf, "ref", fb, Config{MinInterval: 150 * time.Millisecond, FlashHold: 10 * time.Millisecond, MaxPayloadSize: 1900}, nil)

	c.Notify(context.Background(), false)
	time.Sleep(20 * time.Millisecond)
	if got := sf.count(); got != 1 {
		t.Fatalf("edit count after first notify = %d, want 1 (first publish is immediate)", got)
	}

	c.Notify(context.Background(), false)
	time.Sleep(20 * time.Millisecond)
	if got := sf.count(); got != 1 {
		t.Fatalf("edit count right after second notify = %d, want still 1 (deferred by min interval)", got)
	}

	time.Sleep(200 * time.Millisecond)
	if got := sf.count(); got != 2 {
		t.Fatalf("edit count after interval elapsed = %d, want 2", got)
	}
}

func TestSurfaceGoneDeactivates(t *testing.T) {
	fb := framebuffer.New(10, 3, 100)
	sf := &fakeSurface{gone: true}
	c := New(sf, "ref", fb, DefaultConfig(), nil)

	c.Notify(context.Background(), false)
	time.Sleep(50 * time.Millisecond)

	if c.Active() {
		t.Fatal("coalescer still active after surface reported gone")
	}
}

func TestTruncationAppendsNotice(t *testing.T) {
	// 80 blank rows render as 80 single spaces plus 79 newlines (159 bytes),
	// over the 100-byte budget even with the cursor marker dropped.
	fb := framebuffer.New(200, 80, 100)
	sf := &fakeSurface{}
	c := New(sf, "ref", fb, Config{MinInterval: 0, FlashHold: 0, MaxPayloadSize: 100}, nil)

	c.Notify(context.Background(), false)
	time.Sleep(50 * time.Millisecond)

	if sf.count() == 0 {
		t.Fatal("expected at least one edit")
	}
	last := sf.edits[len(sf.edits)-1]
	if !strings.Contains(last, truncationNotice) {
		t.Errorf("expected truncation notice in oversized payload, got %q", last)
	}
	if len(last) > 100+len(truncationNotice)+1 {
		t.Errorf("payload still too large: %d bytes", len(last))
	}
}
