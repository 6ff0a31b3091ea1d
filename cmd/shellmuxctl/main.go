// Command shellmuxctl is the operator CLI for the session multiplexer's
// sandbox: one-shot command execution, process/user inspection, and
// container status, independent of any running shellmuxd daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shellmux/internal/config"
	"shellmux/internal/sandbox"
	"shellmux/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shellmuxctl",
		Short: "Operate the session multiplexer's sandbox container",
	}
	root.AddCommand(
		newExecCmd(),
		newPsCmd(),
		newKillCmd(),
		newUsersCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func buildDispatcher() (*sandbox.Dispatcher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	limits := sandbox.ResourceLimits{
		MaxProcesses:  cfg.Limits.MaxProcesses,
		MaxMemoryMB:   cfg.Limits.MaxMemoryMB,
		MaxCPUPercent: cfg.Limits.MaxCPUPercent,
		MaxDiskMB:     cfg.Limits.MaxDiskMB,
		MaxFileSizeMB: cfg.Limits.MaxFileSizeMB,
	}
	runner := sandbox.NewDockerRunner(cfg.Container.Name)
	return sandbox.New(runner, limits, cfg.Container.BaseHomeDir, nil), nil
}

func newExecCmd() *cobra.Command {
	var asUser string
	var workdir string
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "exec [command]",
		Short: "Run a one-shot command in the sandbox container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDispatcher()
			if err != nil {
				return err
			}
			out, code := d.Execute(context.Background(), args[0], asUser, workdir, time.Duration(timeoutSec)*time.Second)
			fmt.Println(colorizeExitCode(code) + out)
			if code != 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asUser, "as-user", "", "owner id to resolve to the mapped container UID")
	cmd.Flags().StringVar(&workdir, "workdir", "", "working directory inside the container")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 30, "timeout in seconds")
	return cmd
}

func newPsCmd() *cobra.Command {
	var ownerID string
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List processes owned by an owner's mapped UID",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDispatcher()
			if err != nil {
				return err
			}
			procs, err := d.ListProcesses(context.Background(), ownerID)
			if err != nil {
				return err
			}
			for _, p := range procs {
				fmt.Printf("%6d  %6.1f%%  %8.1fMB  %-20s %s\n", p.PID, p.CPUPercent, p.MemoryMB, p.StartTime, p.Command)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newKillCmd() *cobra.Command {
	var ownerID string
	var pid int
	var all bool
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Terminate a process, or every process, owned by an owner's mapped UID",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDispatcher()
			if err != nil {
				return err
			}
			if all {
				return d.KillAll(context.Background(), ownerID)
			}
			return d.KillProcess(context.Background(), ownerID, pid)
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id")
	cmd.Flags().IntVar(&pid, "pid", 0, "process id to terminate")
	cmd.Flags().BoolVar(&all, "all", false, "terminate every process owned by this owner")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List container accounts with UID >= 1000",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDispatcher()
			if err != nil {
				return err
			}
			users, err := d.ListUsers(context.Background())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Println(u)
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show container health and resource stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDispatcher()
			if err != nil {
				return err
			}
			ctx := context.Background()
			if !d.Health(ctx) {
				return fmt.Errorf("container is not running")
			}
			stats, err := d.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Println(stats)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the shellmuxctl build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.DisplayVersion())
			return nil
		},
	}
}

// colorizeExitCode prefixes a marker colored by exit code, only when
// stdout is a real terminal.
func colorizeExitCode(code int) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ""
	}
	out := termenv.NewOutput(os.Stdout)
	if code == 0 {
		return out.String("✓ ").Foreground(out.Color("2")).String() + "\n"
	}
	return out.String("✗ ").Foreground(out.Color("1")).String() + "\n"
}
