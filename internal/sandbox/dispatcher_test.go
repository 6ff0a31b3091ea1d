package sandbox

import (
	"context"
	"testing"
	"time"
)

func TestUIDDerivationIsDeterministicAndStable(t *testing.T) {
	m := NewUIDMap()
	first := m.UID("owner-42")
	second := m.UID("owner-42")
	if first != second {
		t.Fatalf("UID for the same owner changed: %d then %d", first, second)
	}
	if first < 1000 {
		t.Fatalf("UID %d below the 1000 floor", first)
	}
	if other := m.UID("owner-43"); other == first {
		t.Fatalf("distinct owners collided on UID %d (not impossible, but suspicious for this fixture)", first)
	}
}

func TestExecuteRefusesDestructiveCommand(t *testing.T) {
	d := New(NewLocalRunner(), DefaultResourceLimits(), "/home", nil)
	_, code := d.Execute(context.Background(), "rm -rf /", "", "", time.Second)
	if code != -1 {
		t.Fatalf("exit code = %d, want -1 for a refused destructive command", code)
	}
}

func TestExecuteRunsOrdinaryCommand(t *testing.T) {
	d := New(NewLocalRunner(), DefaultResourceLimits(), "/home", nil)
	out, code := d.Execute(context.Background(), "echo hello", "", "", 5*time.Second)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; output: %q", code, out)
	}
	if out != "hello" {
		t.Fatalf("output = %q, want %q", out, "hello")
	}
}

func TestExecuteTimeout(t *testing.T) {
	d := New(NewLocalRunner(), DefaultResourceLimits(), "/home", nil)
	_, code := d.Execute(context.Background(), "sleep 2", "", "", 50*time.Millisecond)
	if code != -1 {
		t.Fatalf("exit code = %d, want -1 for timeout", code)
	}
}

func TestHealthDownRefusesInteractiveOpen(t *testing.T) {
	d := New(&alwaysDownRunner{}, DefaultResourceLimits(), "/home", nil)
	_, err := d.OpenInteractive(context.Background(), "owner-1", "owner-1", 80, 24)
	if err != ErrHealthDown {
		t.Fatalf("err = %v, want ErrHealthDown", err)
	}
}

type alwaysDownRunner struct{ localRunner }

func (a *alwaysDownRunner) Running(ctx context.Context) bool { return false }
