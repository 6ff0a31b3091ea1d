// Package sandbox implements the Sandbox Dispatcher: the facade that runs
// commands inside the shared container under a mapped UID, allocates
// interactive PTY-backed shells, and enforces resource caps.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/shlex"
)

// Dispatcher is the facade the Session Manager talks to. It owns no
// session state of its own; it borrows the UID map (shared, read-mostly)
// and the container Runner.
type Dispatcher struct {
	runner      Runner
	uids        *UIDMap
	limits      ResourceLimits
	baseHomeDir string
	log         *slog.Logger
}

// New builds a Dispatcher. baseHomeDir is the parameterized base path
// ensure_user creates accounts under (the source had two divergent
// ensure_user implementations differing only in this path; here it is one
// implementation, parameterized at construction).
func New(runner Runner, limits ResourceLimits, baseHomeDir string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		runner:      runner,
		uids:        NewUIDMap(),
		limits:      limits,
		baseHomeDir: baseHomeDir,
		log:         log,
	}
}

func (d *Dispatcher) homeDir(username string) string {
	return path.Join(d.baseHomeDir, username)
}

// UID exposes the deterministic owner-id -> UID mapping.
func (d *Dispatcher) UID(ownerID string) int {
	return d.uids.UID(ownerID)
}

// Health reports whether the container is running.
func (d *Dispatcher) Health(ctx context.Context) bool {
	return d.runner.Running(ctx)
}

// Execute runs a one-shot shell command inside the container. asUser, when
// non-empty, resolves to the owner's mapped UID. Exit code -1 marks a
// timeout, a launch failure, or a command refused before launch (a
// known-destructive pattern, invalid quoting, or an empty command).
func (d *Dispatcher) Execute(ctx context.Context, commandString string, asUser string, workingDir string, timeout time.Duration) (string, int) {
	if reason := checkDestructive(commandString); reason != "" {
		d.log.Warn("sandbox: refused destructive command", "command", commandString)
		return reason, -1
	}

	argv, err := shlex.Split(commandString)
	if err != nil {
		return fmt.Sprintf("invalid command syntax: %v", err), -1
	}
	if len(argv) == 0 {
		return "empty command", -1
	}

	uid := -1
	if asUser != "" {
		uid = d.uids.UID(asUser)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, code, err := d.runner.Run(runCtx, uid, workingDir, []string{"bash", "-c", commandString})
	if err != nil {
		return fmt.Sprintf("launch failed: %v", err), -1
	}
	return output, code
}

// OpenInteractive spawns a login shell inside the container under
// UID(ownerID), in the owner's home directory, with TERM/COLUMNS/LINES set
// so the shell line-disciplines and emits ANSI.
func (d *Dispatcher) OpenInteractive(ctx context.Context, ownerID, username string, cols, rows int) (InteractiveHandle, error) {
	if !d.runner.Running(ctx) {
		return nil, ErrHealthDown
	}
	uid := d.uids.UID(ownerID)
	env := map[string]string{
		"TERM": "xterm",
	}
	return d.runner.StartInteractive(ctx, uid, d.homeDir(username), env, cols, rows)
}

// EnsureUser idempotently creates a container account for ownerID's mapped
// UID with the given username.
func (d *Dispatcher) EnsureUser(ctx context.Context, ownerID, username string) error {
	uid := d.uids.UID(ownerID)
	return d.runner.EnsureUser(ctx, uid, username, d.homeDir(username))
}

// ListProcesses inspects the live processes owned by ownerID's UID.
func (d *Dispatcher) ListProcesses(ctx context.Context, ownerID string) ([]ProcessSnapshot, error) {
	return d.runner.ListProcesses(ctx, d.uids.UID(ownerID))
}

// KillProcess sends SIGTERM to pid, restricted to ownerID's own UID by the
// Runner's `-u` scoping.
func (d *Dispatcher) KillProcess(ctx context.Context, ownerID string, pid int) error {
	return d.runner.KillProcess(ctx, d.uids.UID(ownerID), pid)
}

// KillAll terminates every process owned by ownerID's UID.
func (d *Dispatcher) KillAll(ctx context.Context, ownerID string) error {
	return d.runner.KillAll(ctx, d.uids.UID(ownerID))
}

// ContainerInfo answers a read-only container-info probe (os, kernel, host,
// uptime, cpu, memory, disk) — supplementary to the core, useful for a
// status command.
func (d *Dispatcher) ContainerInfo(ctx context.Context, kind string) (string, error) {
	return d.runner.Info(ctx, kind)
}

// Stats reports container-wide CPU/mem/net usage.
func (d *Dispatcher) Stats(ctx context.Context) (string, error) {
	return d.runner.Stats(ctx)
}

// ListUsers lists the container accounts with UID >= 1000.
func (d *Dispatcher) ListUsers(ctx context.Context) ([]string, error) {
	return d.runner.ListUsers(ctx)
}
