// Package session implements the Session Manager: the per-owner state
// machine that wires a Sandbox Dispatcher's interactive PTY handle through
// the ANSI/VT interpreter into a Framebuffer, and that Framebuffer through
// the Update Coalescer onto an externally hosted Surface object.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shellmux/internal/coalescer"
	"shellmux/internal/framebuffer"
	"shellmux/internal/sandbox"
	"shellmux/internal/surface"
	"shellmux/internal/vtparser"
)

// State is a Session's position in its INIT -> RUNNING -> CLOSING -> CLOSED
// lifecycle. Transitions only move forward; a Session is discarded from the
// table once CLOSED, never reused.
type State int

const (
	StateInit State = iota
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned by Open when the owner already has a
// RUNNING session — the invariant is at most one live session per owner.
var ErrAlreadyRunning = errors.New("session: owner already has a running session")

// ErrNotFound is returned when an operation names an owner with no tracked
// session.
var ErrNotFound = errors.New("session: no session for this owner")

// Session is one owner's live shell: a Framebuffer fed by an ANSI/VT
// Interpreter, backed by an interactive sandbox process, published through
// an Update Coalescer onto a Surface object. It is Session-local state; the
// Session Table (in Manager) is the only part shared across Sessions.
type Session struct {
	OwnerID       string
	CorrelationID string

	fb        *framebuffer.Framebuffer
	interp    *vtparser.Interpreter
	handle    sandbox.InteractiveHandle
	coalescer *coalescer.Coalescer
	sf        surface.Surface

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// State reports the Session's current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Done is closed once the Session's reader task has fully torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Manager owns the Session Table: a map of owner id to Session, mutated
// under a single mutex. Every other piece of a Session's state is
// Session-local and touched only by that Session's own reader task.
type Manager struct {
	dispatcher *sandbox.Dispatcher
	log        *slog.Logger

	fbWidth, fbHeight, scrollCap int
	coalescerCfg                coalescer.Config
	readTimeout                 time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// Config tunes the dimensions and timings a Manager builds new Sessions
// with.
type Config struct {
	Width, Height int
	ScrollbackCap int
	Coalescer     coalescer.Config
	ReadTimeout   time.Duration
}

// DefaultConfig matches the spec's default Framebuffer and poll-interval
// figures.
func DefaultConfig() Config {
	return Config{
		Width:         80,
		Height:        24,
		ScrollbackCap: 1000,
		Coalescer:     coalescer.DefaultConfig(),
		ReadTimeout:   30 * time.Millisecond,
	}
}

// NewManager builds a Manager driving the given Dispatcher.
func NewManager(d *sandbox.Dispatcher, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dispatcher:  d,
		log:         log,
		fbWidth:     cfg.Width,
		fbHeight:    cfg.Height,
		scrollCap:   cfg.ScrollbackCap,
		coalescerCfg: cfg.Coalescer,
		readTimeout: cfg.ReadTimeout,
		sessions:    make(map[string]*Session),
	}
}

// Lookup returns the tracked Session for ownerID, if any.
func (m *Manager) Lookup(ownerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ownerID]
	return s, ok
}

// Open starts a new interactive shell for ownerID, publishes its initial
// (blank) frame to sf, and starts the Session's reader task. It refuses if
// ownerID already has a RUNNING session, if the sandbox's resource caps are
// exceeded, or if the container is unhealthy.
func (m *Manager) Open(ctx context.Context, ownerID, username string, sf surface.Surface) (*Session, error) {
	if existing, ok := m.Lookup(ownerID); ok && existing.State() == StateRunning {
		return nil, ErrAlreadyRunning
	}

	if err := m.dispatcher.EnsureUser(ctx, ownerID, username); err != nil {
		return nil, fmt.Errorf("session: ensure user: %w", err)
	}
	if ok, reason := m.dispatcher.CheckLimits(ctx, ownerID, username); !ok {
		return nil, fmt.Errorf("session: resource limit exceeded: %s", reason)
	}

	handle, err := m.dispatcher.OpenInteractive(ctx, ownerID, username, m.fbWidth, m.fbHeight)
	if err != nil {
		return nil, fmt.Errorf("session: open interactive: %w", err)
	}

	fb := framebuffer.New(m.fbWidth, m.fbHeight, m.scrollCap)
	interp := vtparser.New(fb)

	ref, err := sf.Send(ctx, renderFrame(fb))
	if err != nil {
		handle.Terminate()
		return nil, fmt.Errorf("session: publish initial frame: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		OwnerID:       ownerID,
		CorrelationID: uuid.NewString(),
		fb:            fb,
		interp:        interp,
		handle:        handle,
		coalescer:     coalescer.New(sf, ref, fb, m.coalescerCfg, m.log),
		sf:            sf,
		state:         StateRunning,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[ownerID] = s
	m.mu.Unlock()

	go m.run(sessCtx, s)
	return s, nil
}

func renderFrame(fb *framebuffer.Framebuffer) string {
	return strings.Join(fb.Render(true), "\n")
}

// run is the Session's single reader task: it pulls process output,
// interprets it into the Framebuffer, and notifies the Coalescer, until the
// process exits, the Session is cancelled, or the Surface is gone.
func (m *Manager) run(ctx context.Context, s *Session) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			m.teardown(s, "closed")
			return
		default:
		}

		data, err := s.handle.ReadOutput(4096, m.readTimeout)
		if err == io.EOF {
			m.teardown(s, "process exited")
			return
		}

		if len(data) > 0 {
			bell := s.interp.Feed(data)
			s.coalescer.Notify(ctx, bell)
		}

		if !s.coalescer.Active() {
			m.teardown(s, "surface gone")
			return
		}
	}
}

func (m *Manager) teardown(s *Session, reason string) {
	s.setState(StateClosing)

	s.handle.Terminate()
	if !s.handle.Wait(2 * time.Second) {
		s.handle.Kill()
		s.handle.Wait(2 * time.Second)
	}

	s.coalescer.PublishFinal(context.Background(), closingFrame(s.fb.Width(), s.fb.Height()))
	s.setState(StateClosed)

	m.mu.Lock()
	if m.sessions[s.OwnerID] == s {
		delete(m.sessions, s.OwnerID)
	}
	m.mu.Unlock()

	m.log.Info("session closed", "owner_id", s.OwnerID, "correlation_id", s.CorrelationID, "reason", reason)
}

func closingFrame(width, height int) string {
	msg := "shell session closed"
	lines := make([]string, height)
	mid := height / 2
	for i := range lines {
		if i == mid {
			pad := (width - len(msg)) / 2
			if pad < 0 {
				pad = 0
			}
			lines[i] = strings.Repeat(" ", pad) + msg
		} else {
			lines[i] = strings.Repeat(" ", width)
		}
	}
	return strings.Join(lines, "\n")
}

// HandleInput translates text per the bracketed-token grammar and writes
// the result to ownerID's running shell. A message that is exactly
// "[EXIT]" is not forwarded; it cancels the Session, moving it to CLOSING.
// inputRef addresses the chat message text came from; once it has been
// processed, it is deleted from the surface best-effort, so the channel
// reads like a terminal.
func (m *Manager) HandleInput(ctx context.Context, ownerID, text string, inputRef surface.Ref) error {
	s, ok := m.Lookup(ownerID)
	if !ok || s.State() != StateRunning {
		return ErrNotFound
	}
	defer s.deleteInput(ctx, inputRef, m.log)

	encoded, exit := Translate(text)
	if exit {
		s.cancel()
		return nil
	}
	if len(encoded) == 0 {
		return nil
	}

	if _, err := s.handle.WriteStdin(encoded); err != nil {
		return fmt.Errorf("session: write stdin: %w", err)
	}
	return nil
}

// deleteInput removes the originating chat message, best-effort: failure
// is logged and not retried.
func (s *Session) deleteInput(ctx context.Context, ref surface.Ref, log *slog.Logger) {
	if ref == nil {
		return
	}
	if err := s.sf.Delete(ctx, ref); err != nil {
		log.Warn("session: delete input message", "owner_id", s.OwnerID, "error", err)
	}
}

// Close requests that ownerID's session move to CLOSING. It is idempotent
// once the session is already closing or closed.
func (m *Manager) Close(ownerID string) error {
	s, ok := m.Lookup(ownerID)
	if !ok {
		return ErrNotFound
	}
	s.cancel()
	return nil
}
