package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// localRunner is a dev/test Runner double: it runs real local processes
// directly on the host (no container, no uid switch — the test
// environment typically lacks the privilege to setuid) but allocates a
// genuine PTY for interactive sessions via creack/pty, exercising the same
// InteractiveHandle contract the docker-backed Runner does.
type localRunner struct {
	mu    sync.Mutex
	users map[int]string
}

// NewLocalRunner builds a Runner suitable for local development and tests,
// with no real container behind it.
func NewLocalRunner() Runner {
	return &localRunner{users: make(map[int]string)}
}

func (r *localRunner) Run(ctx context.Context, uid int, workdir string, argv []string) (string, int, error) {
	if len(argv) == 0 {
		return "", -1, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if workdir != "" {
		cmd.Dir = workdir
	}
	out, err := cmd.CombinedOutput()
	output := strings.TrimRight(string(out), "\n")

	if ctx.Err() == context.DeadlineExceeded {
		if output == "" {
			output = "timeout after request deadline"
		}
		return output, -1, nil
	}
	if err == nil {
		return output, 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return output, exitErr.ExitCode(), nil
	}
	return fmt.Sprintf("launch failed: %v", err), -1, nil
}

func (r *localRunner) Running(ctx context.Context) bool {
	return true
}

func (r *localRunner) StartInteractive(ctx context.Context, uid int, workdir string, env map[string]string, cols, rows int) (InteractiveHandle, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	cmd := exec.Command(shell)
	if workdir != "" {
		cmd.Dir = workdir
	}
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return startPTYHandleSized(cmd, cols, rows)
}

func (r *localRunner) EnsureUser(ctx context.Context, uid int, username, homeDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[uid] = username
	return nil
}

func (r *localRunner) ListProcesses(ctx context.Context, uid int) ([]ProcessSnapshot, error) {
	return nil, nil
}

func (r *localRunner) KillProcess(ctx context.Context, uid, pid int) error {
	return nil
}

func (r *localRunner) KillAll(ctx context.Context, uid int) error {
	return nil
}

func (r *localRunner) DiskUsageMB(ctx context.Context, path string) (int, error) {
	return 0, nil
}

func (r *localRunner) Info(ctx context.Context, kind string) (string, error) {
	switch kind {
	case "host":
		h, _ := os.Hostname()
		return h, nil
	case "os":
		return "local-dev", nil
	default:
		return "", fmt.Errorf("unsupported info kind %q on local runner", kind)
	}
}

func (r *localRunner) Stats(ctx context.Context) (string, error) {
	return "0%|0MiB / 0MiB|0B / 0B", nil
}

func (r *localRunner) ListUsers(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.users))
	for _, n := range r.users {
		names = append(names, n)
	}
	return names, nil
}
