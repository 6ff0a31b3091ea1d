package sandbox

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// ptyHandle is the shared InteractiveHandle implementation for both the
// docker-backed Runner (PTY allocated on the `docker exec` side via
// `script`) and the local dev/test Runner (PTY allocated directly on the
// spawned process).
type ptyHandle struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	exitCode int
	exited   bool
	waitErr  error
	waitOnce sync.Once
	waitDone chan struct{}
}

func startPTYHandle(cmd *exec.Cmd) (*ptyHandle, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	h := &ptyHandle{cmd: cmd, ptmx: ptmx, waitDone: make(chan struct{})}
	go h.reapWhenDone()
	return h, nil
}

func startPTYHandleSized(cmd *exec.Cmd, cols, rows int) (*ptyHandle, error) {
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, err
	}
	h := &ptyHandle{cmd: cmd, ptmx: ptmx, waitDone: make(chan struct{})}
	go h.reapWhenDone()
	return h, nil
}

func (h *ptyHandle) reapWhenDone() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exited = true
	h.waitErr = err
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.mu.Unlock()
	close(h.waitDone)
}

func (h *ptyHandle) WriteStdin(p []byte) (int, error) {
	return h.ptmx.Write(p)
}

// ReadOutput blocks for at most timeout, returning (nil, nil) on a plain
// timeout so the reader can re-check session liveness, per the "no
// operation blocks indefinitely" rule.
func (h *ptyHandle) ReadOutput(maxBytes int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	h.ptmx.SetReadDeadline(deadline)

	buf := make([]byte, maxBytes)
	n, err := h.ptmx.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		if os.IsTimeout(err) {
			return nil, nil
		}
		return nil, io.EOF
	}
	return nil, nil
}

func (h *ptyHandle) Terminate() error {
	return h.cmd.Process.Signal(unix.SIGTERM)
}

func (h *ptyHandle) Kill() error {
	return h.cmd.Process.Signal(unix.SIGKILL)
}

func (h *ptyHandle) Wait(timeout time.Duration) bool {
	select {
	case <-h.waitDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (h *ptyHandle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.exited
}
