package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// dockerRunner shells out to the docker CLI against a single named
// container, the way the original bot's DockerService did.
type dockerRunner struct {
	container string
}

// NewDockerRunner builds a Runner backed by `docker exec`/`docker inspect`
// against the named container.
func NewDockerRunner(container string) Runner {
	return &dockerRunner{container: container}
}

func (r *dockerRunner) execArgs(uid int, workdir string, argv []string) []string {
	args := []string{"exec"}
	if uid >= 0 {
		args = append(args, "-u", strconv.Itoa(uid))
	}
	if workdir != "" {
		args = append(args, "-w", workdir)
	}
	args = append(args, r.container)
	return append(args, argv...)
}

func (r *dockerRunner) Run(ctx context.Context, uid int, workdir string, argv []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, "docker", r.execArgs(uid, workdir, argv)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimRight(out.String(), "\n")

	if ctx.Err() == context.DeadlineExceeded {
		if output == "" {
			output = fmt.Sprintf("timeout after %s", deadlineString(ctx))
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

func deadlineString(ctx context.Context) string {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl).Round(time.Second).String()
	}
	return "?"
}

func (r *dockerRunner) Running(ctx context.Context) bool {
	out, err := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}}", r.container).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

func (r *dockerRunner) StartInteractive(ctx context.Context, uid int, workdir string, env map[string]string, cols, rows int) (InteractiveHandle, error) {
	args := []string{"exec", "-i"}
	if uid >= 0 {
		args = append(args, "-u", strconv.Itoa(uid))
	}
	if workdir != "" {
		args = append(args, "-w", workdir)
	}
	args = append(args, r.container, "env")
	for k, v := range env {
		args = append(args, fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, "COLUMNS="+strconv.Itoa(cols), "LINES="+strconv.Itoa(rows))
	args = append(args, "script", "-qfc", "bash", "/dev/null")

	cmd := exec.Command("docker", args...)
	return startPTYHandle(cmd)
}

func (r *dockerRunner) EnsureUser(ctx context.Context, uid int, username, homeDir string) error {
	checkArgs := r.execArgs(-1, "", []string{"id", "-u", strconv.Itoa(uid)})
	if err := exec.CommandContext(ctx, "docker", checkArgs...).Run(); err == nil {
		return nil
	}

	createArgv := []string{"useradd", "-u", strconv.Itoa(uid), "-m", "-d", homeDir, "-s", "/bin/bash", username}
	if out, code, err := r.Run(ctx, -1, "", createArgv); err != nil {
		return fmt.Errorf("useradd: %w", err)
	} else if code != 0 && !strings.Contains(out, "already exists") {
		return fmt.Errorf("useradd: exit %d: %s", code, out)
	}

	chownArgs := []string{"chown", "-R", fmt.Sprintf("%d:%d", uid, uid), homeDir}
	if _, code, err := r.Run(ctx, -1, "", chownArgs); err != nil || code != 0 {
		return fmt.Errorf("chown %s: exit %d: %w", homeDir, code, err)
	}
	return nil
}

func (r *dockerRunner) ListProcesses(ctx context.Context, uid int) ([]ProcessSnapshot, error) {
	out, _, err := r.Run(ctx, -1, "", []string{"ps", "-u", strconv.Itoa(uid), "-o", "pid,pcpu,rss,lstart,comm", "--no-headers"})
	if err != nil {
		return nil, err
	}
	var snaps []ProcessSnapshot
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, _ := strconv.Atoi(fields[0])
		cpu, _ := strconv.ParseFloat(fields[1], 64)
		rssKB, _ := strconv.ParseFloat(fields[2], 64)
		snaps = append(snaps, ProcessSnapshot{
			PID:        pid,
			CPUPercent: cpu,
			MemoryMB:   rssKB / 1024,
			Command:    fields[len(fields)-1],
		})
	}
	return snaps, nil
}

func (r *dockerRunner) KillProcess(ctx context.Context, uid, pid int) error {
	_, code, err := r.Run(ctx, uid, "", []string{"kill", strconv.Itoa(pid)})
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("kill %d: exit %d", pid, code)
	}
	return nil
}

func (r *dockerRunner) KillAll(ctx context.Context, uid int) error {
	_, _, err := r.Run(ctx, -1, "", []string{"pkill", "-u", strconv.Itoa(uid)})
	return err
}

func (r *dockerRunner) DiskUsageMB(ctx context.Context, path string) (int, error) {
	out, _, err := r.Run(ctx, -1, "", []string{"du", "-sm", path})
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, fmt.Errorf("unexpected du output: %q", out)
	}
	mb, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("unexpected du output: %q", out)
	}
	return mb, nil
}

var infoCommands = map[string][]string{
	"os":      {"sh", "-c", "uname -o"},
	"kernel":  {"uname", "-r"},
	"host":    {"hostname"},
	"uptime":  {"uptime", "-p"},
	"cpu":     {"sh", "-c", "nproc"},
	"memory":  {"free", "-h"},
	"disk":    {"df", "-h", "/"},
}

func (r *dockerRunner) Info(ctx context.Context, kind string) (string, error) {
	argv, ok := infoCommands[kind]
	if !ok {
		return "", fmt.Errorf("unknown info kind %q", kind)
	}
	out, code, err := r.Run(ctx, -1, "", argv)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%s probe: exit %d", kind, code)
	}
	return out, nil
}

func (r *dockerRunner) Stats(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "stats", "--no-stream", "--format",
		"{{.CPUPerc}}|{{.MemUsage}}|{{.NetIO}}", r.container).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *dockerRunner) ListUsers(ctx context.Context) ([]string, error) {
	out, _, err := r.Run(ctx, -1, "", []string{"sh", "-c", `getent passwd | awk -F: '$3 >= 1000 {print $1}'`})
	if err != nil {
		return nil, err
	}
	var users []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			users = append(users, line)
		}
	}
	return users, nil
}
