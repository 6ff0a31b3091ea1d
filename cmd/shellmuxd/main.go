// Command shellmuxd is the session multiplexer daemon: it owns the
// Sandbox Dispatcher, the Session Manager, and the maintenance sweep. A
// concrete Surface (chat transport) adapter is wired in by the deployment
// embedding this package; this binary only proves out the core standalone.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shellmux/internal/config"
	"shellmux/internal/logging"
	"shellmux/internal/maintenance"
	"shellmux/internal/sandbox"
	"shellmux/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	var logFile string

	root := &cobra.Command{
		Use:   "shellmuxd",
		Short: "Session multiplexer daemon",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "additionally append logs to this file")

	root.AddCommand(newServeCmd(&logLevel, &logFile))
	return root
}

func newServeCmd(logLevel, logFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*logLevel, *logFile)
		},
	}
}

func serve(logLevel, logFile string) error {
	log, err := logging.New(logging.Options{Level: logLevel, LogFile: logFile})
	if err != nil {
		return fmt.Errorf("shellmuxd: build logger: %w", err)
	}

	lockPath := filepath.Join(config.ConfigDir(), "shellmuxd.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("shellmuxd: prepare lock dir: %w", err)
	}
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("shellmuxd: acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("shellmuxd: another instance is already running (lock held: %s)", lockPath)
	}
	defer fl.Unlock()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("shellmuxd: load config: %w", err)
	}

	runner := sandbox.NewDockerRunner(cfg.Container.Name)
	limits := sandbox.ResourceLimits{
		MaxProcesses:  cfg.Limits.MaxProcesses,
		MaxMemoryMB:   cfg.Limits.MaxMemoryMB,
		MaxCPUPercent: cfg.Limits.MaxCPUPercent,
		MaxDiskMB:     cfg.Limits.MaxDiskMB,
		MaxFileSizeMB: cfg.Limits.MaxFileSizeMB,
	}
	dispatcher := sandbox.New(runner, limits, cfg.Container.BaseHomeDir, log)

	mgrCfg := session.Config{
		Width:         cfg.Framebuffer.Width,
		Height:        cfg.Framebuffer.Height,
		ScrollbackCap: cfg.Framebuffer.ScrollbackCap,
	}
	mgrCfg.Coalescer.MinInterval = msDuration(cfg.Coalescer.MinIntervalMS)
	mgrCfg.Coalescer.FlashHold = msDuration(cfg.Coalescer.FlashHoldMS)
	mgrCfg.Coalescer.MaxPayloadSize = cfg.Coalescer.MaxPayloadSize
	mgrCfg.ReadTimeout = session.DefaultConfig().ReadTimeout

	manager := session.NewManager(dispatcher, mgrCfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ownerIDs := make([]string, 0, len(cfg.Users))
	for ownerID := range cfg.Users {
		ownerIDs = append(ownerIDs, ownerID)
	}
	sched, err := maintenance.New(cfg.Maintenance.RRule, ownerIDs, manager, dispatcher, log)
	if err != nil {
		return fmt.Errorf("shellmuxd: build maintenance scheduler: %w", err)
	}
	go sched.Run(ctx)

	log.Info("shellmuxd ready", "container", cfg.Container.Name)
	<-ctx.Done()
	log.Info("shellmuxd shutting down")
	return nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
