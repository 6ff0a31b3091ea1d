package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"shellmux/internal/coalescer"
	"shellmux/internal/sandbox"
	"shellmux/internal/surface"
)

type fakeHandle struct {
	mu      sync.Mutex
	written []byte
	outputs chan []byte
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{outputs: make(chan []byte, 8)}
}

func (h *fakeHandle) WriteStdin(p []byte) (int, error) {
	h.mu.Lock()
	h.written = append(h.written, p...)
	h.mu.Unlock()
	return len(p), nil
}

func (h *fakeHandle) ReadOutput(maxBytes int, timeout time.Duration) ([]byte, error) {
	select {
	case data, ok := <-h.outputs:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (h *fakeHandle) Terminate() error           { return nil }
func (h *fakeHandle) Kill() error                { return nil }
func (h *fakeHandle) Wait(time.Duration) bool    { return true }
func (h *fakeHandle) ExitCode() (int, bool)      { return 0, true }

func (h *fakeHandle) writtenBytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]byte, len(h.written))
	copy(out, h.written)
	return out
}

type fakeRunner struct {
	handle *fakeHandle
}

func (r *fakeRunner) Run(ctx context.Context, uid int, workdir string, argv []string) (string, int, error) {
	return "", 0, nil
}
func (r *fakeRunner) Running(ctx context.Context) bool { return true }
func (r *fakeRunner) StartInteractive(ctx context.Context, uid int, workdir string, env map[string]string, cols, rows int) (sandbox.InteractiveHandle, error) {
	return r.handle, nil
}
func (r *fakeRunner) EnsureUser(ctx context.Context, uid int, username, homeDir string) error {
	return nil
}
func (r *fakeRunner) ListProcesses(ctx context.Context, uid int) ([]sandbox.ProcessSnapshot, error) {
	return nil, nil
}
func (r *fakeRunner) KillProcess(ctx context.Context, uid, pid int) error { return nil }
func (r *fakeRunner) KillAll(ctx context.Context, uid int) error         { return nil }
func (r *fakeRunner) DiskUsageMB(ctx context.Context, path string) (int, error) {
	return 0, nil
}
func (r *fakeRunner) Info(ctx context.Context, kind string) (string, error) { return "", nil }
func (r *fakeRunner) Stats(ctx context.Context) (string, error)            { return "", nil }
func (r *fakeRunner) ListUsers(ctx context.Context) ([]string, error)      { return nil, nil }

type fakeSurface struct {
	mu      sync.Mutex
	edits   []string
	gone    bool
	deleted []surface.Ref
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

func (f *fakeSurface) Delete(ctx context.Context, ref surface.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeSurface) deletedRefs() []surface.Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]surface.Ref, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func newTestManager(handle *fakeHandle) *Manager {
	d := sandbox.New(&fakeRunner{handle: handle}, sandbox.DefaultResourceLimits(), "/home", nil)
	cfg := Config{
		Width:         10,
		Height:        3,
		ScrollbackCap: 50,
		Coalescer:     coalescer.Config{MinInterval: 0, FlashHold: 0, MaxPayloadSize: 1900},
		ReadTimeout:   10 * time.Millisecond,
	}
	return NewManager(d, cfg, nil)
}

func TestOpenRefusesDuplicateRunningSession(t *testing.T) {
	handle := newFakeHandle()
	m := newTestManager(handle)
	sf := &fakeSurface{}

	if _, err := m.Open(context.Background(), "owner-1", "owner-1", sf); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := m.Open(context.Background(), "owner-1", "owner-1", sf); err != ErrAlreadyRunning {
		t.Fatalf("second Open err = %v, want ErrAlreadyRunning", err)
	}
}

func TestHandleInputTranslatesAndWrites(t *testing.T) {
	handle := newFakeHandle()
	m := newTestManager(handle)
	sf := &fakeSurface{}

	if _, err := m.Open(context.Background(), "owner-2", "owner-2", sf); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := m.HandleInput(context.Background(), "owner-2", "ls[]", "msg-1"); err != nil {
		t.Fatalf("HandleInput: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(handle.writtenBytes()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	want := "ls\n"
	if got := string(handle.writtenBytes()); got != want {
		t.Fatalf("written = %q, want %q", got, want)
	}

	if deleted := sf.deletedRefs(); len(deleted) != 1 || deleted[0] != surface.Ref("msg-1") {
		t.Fatalf("deleted = %v, want [msg-1]", deleted)
	}
}

func TestHandleInputExitSentinelClosesSession(t *testing.T) {
	handle := newFakeHandle()
	m := newTestManager(handle)
	sf := &fakeSurface{}

	s, err := m.Open(context.Background(), "owner-3", "owner-3", sf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := m.HandleInput(context.Background(), "owner-3", "[EXIT]", "msg-exit"); err != nil {
		t.Fatalf("HandleInput: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not tear down after [EXIT]")
	}

	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
	if _, ok := m.Lookup("owner-3"); ok {
		t.Fatal("closed session still present in the table")
	}
	if deleted := sf.deletedRefs(); len(deleted) != 1 || deleted[0] != surface.Ref("msg-exit") {
		t.Fatalf("deleted = %v, want [msg-exit] even for the [EXIT] sentinel", deleted)
	}
}

func TestReaderTeardownOnProcessEOF(t *testing.T) {
	handle := newFakeHandle()
	m := newTestManager(handle)
	sf := &fakeSurface{}

	s, err := m.Open(context.Background(), "owner-4", "owner-4", sf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	close(handle.outputs)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not tear down after process EOF")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}
