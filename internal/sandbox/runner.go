package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrHealthDown is returned when the container is not running; the Session
// Manager treats it as a refusal to open new sessions.
var ErrHealthDown = errors.New("sandbox: container is not running")

// Runner is the command-runner facility the Dispatcher drives — a real
// `docker exec`-backed container in production, or a local-process double
// for development and tests. It owns no session state.
type Runner interface {
	// Run executes argv inside the container, optionally as uid (uid < 0
	// means unset) and in workdir (empty means the container default),
	// returning combined stdout+stderr and an exit code. Exit code -1 is
	// reserved for timeout or launch failure.
	Run(ctx context.Context, uid int, workdir string, argv []string) (output string, exitCode int, err error)

	// Running reports whether the backing container is alive.
	Running(ctx context.Context) bool

	// StartInteractive allocates a PTY-backed login shell as uid, in
	// workdir, with env, sized cols x rows.
	StartInteractive(ctx context.Context, uid int, workdir string, env map[string]string, cols, rows int) (InteractiveHandle, error)

	// EnsureUser idempotently creates a container account for uid with the
	// given username and home directory, chowning the home to uid.
	EnsureUser(ctx context.Context, uid int, username, homeDir string) error

	// ListProcesses inspects live processes owned by uid.
	ListProcesses(ctx context.Context, uid int) ([]ProcessSnapshot, error)

	// KillProcess sends SIGTERM to a single pid owned by uid.
	KillProcess(ctx context.Context, uid, pid int) error

	// KillAll sends SIGTERM to every process owned by uid.
	KillAll(ctx context.Context, uid int) error

	// DiskUsageMB reports disk usage, in megabytes, of a path.
	DiskUsageMB(ctx context.Context, path string) (int, error)

	// Info answers one of the container-info probes (os, kernel, host,
	// uptime, cpu, memory, disk).
	Info(ctx context.Context, kind string) (string, error)

	// Stats reports container-wide CPU/mem/net usage as a single line.
	Stats(ctx context.Context) (string, error)

	// ListUsers lists usernames with UID >= 1000 inside the container.
	ListUsers(ctx context.Context) ([]string, error)
}

// InteractiveHandle is the owning handle to a login shell spawned inside
// the container, returned by Runner.StartInteractive.
type InteractiveHandle interface {
	// WriteStdin writes to the process's stdin, respecting backpressure.
	WriteStdin(p []byte) (int, error)

	// ReadOutput reads up to maxBytes from the process's combined output,
	// blocking at most timeout before returning (nil, nil) to let
	// the caller re-check liveness. Returns io.EOF via err when the
	// process's output stream has closed.
	ReadOutput(maxBytes int, timeout time.Duration) (data []byte, err error)

	// Terminate sends SIGTERM.
	Terminate() error

	// Kill sends SIGKILL.
	Kill() error

	// Wait blocks up to timeout for the process to exit, reporting whether
	// it did.
	Wait(timeout time.Duration) (exited bool)

	// ExitCode reports the exit code once the process has exited.
	ExitCode() (code int, exited bool)
}
