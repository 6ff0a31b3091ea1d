package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// Config is shellmux's on-disk configuration: the shared container it
// dispatches into, the Framebuffer/Coalescer defaults new Sessions are
// built with, the per-owner resource caps, and the owner_id -> username
// roster.
type Config struct {
	Container   ContainerConfig        `yaml:"container"`
	Framebuffer FramebufferConfig      `yaml:"framebuffer"`
	Coalescer   CoalescerConfig        `yaml:"coalescer"`
	Limits      LimitsConfig           `yaml:"limits"`
	Maintenance MaintenanceConfig      `yaml:"maintenance"`
	Users       map[string]*UserConfig `yaml:"users"`
}

// ContainerConfig names the shared sandbox container and the base
// directory under which per-user home directories are created.
type ContainerConfig struct {
	Name        string `yaml:"name"`
	BaseHomeDir string `yaml:"base_home_dir"`
}

// FramebufferConfig sizes the virtual terminal new Sessions render into.
type FramebufferConfig struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	ScrollbackCap int `yaml:"scrollback_cap"`
}

// CoalescerConfig tunes the Update Coalescer's rate limit, bell flash
// duration, and surface payload budget. Intervals are given in
// milliseconds to keep the YAML free of Go duration syntax.
type CoalescerConfig struct {
	MinIntervalMS  int `yaml:"min_interval_ms"`
	FlashHoldMS    int `yaml:"flash_hold_ms"`
	MaxPayloadSize int `yaml:"max_payload_size"`
}

// LimitsConfig is the process-wide ResourceLimits. A UserConfig may carry
// its own Limits block, which is parsed but not applied: the daemon and the
// CLI build their Dispatcher from this process-wide block alone, for every
// owner.
type LimitsConfig struct {
	MaxProcesses  int     `yaml:"max_processes"`
	MaxMemoryMB   int     `yaml:"max_memory_mb"`
	MaxCPUPercent float64 `yaml:"max_cpu_percent"`
	MaxDiskMB     int     `yaml:"max_disk_mb"`
	MaxFileSizeMB int     `yaml:"max_file_size_mb"`
}

// MaintenanceConfig schedules periodic container housekeeping (killing the
// container processes of configured owners with no RUNNING Session) via an
// iCalendar RRULE string.
type MaintenanceConfig struct {
	RRule string `yaml:"rrule"`
}

// UserConfig maps one owner_id to a container username, with optional
// per-owner overrides.
type UserConfig struct {
	Username        string       `yaml:"username"`
	AllowedCommands []string     `yaml:"allowed_commands,omitempty"`
	Limits          *LimitsConfig `yaml:"limits,omitempty"`
}

// ConfigDir returns shellmux's configuration directory (~/.shellmux/).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".shellmux")
	}
	return filepath.Join(home, ".shellmux")
}

// Load reads shellmux's config from ~/.shellmux/config.yaml, applying
// defaults for any zero-valued section.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
}

// LoadFrom reads shellmux's config from path. A missing file yields a
// config of pure defaults, not an error.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Container.Name == "" {
		c.Container.Name = "shellmux-sandbox"
	}
	if c.Container.BaseHomeDir == "" {
		c.Container.BaseHomeDir = "/home"
	}
	if c.Framebuffer.Width == 0 {
		c.Framebuffer.Width = 80
	}
	if c.Framebuffer.Height == 0 {
		c.Framebuffer.Height = 24
	}
	if c.Framebuffer.ScrollbackCap == 0 {
		c.Framebuffer.ScrollbackCap = 1000
	}
	if c.Coalescer.MinIntervalMS == 0 {
		c.Coalescer.MinIntervalMS = 100
	}
	if c.Coalescer.FlashHoldMS == 0 {
		c.Coalescer.FlashHoldMS = 150
	}
	if c.Coalescer.MaxPayloadSize == 0 {
		c.Coalescer.MaxPayloadSize = 1900
	}
	if c.Limits.MaxProcesses == 0 {
		c.Limits.MaxProcesses = 20
	}
	if c.Limits.MaxMemoryMB == 0 {
		c.Limits.MaxMemoryMB = 512
	}
	if c.Limits.MaxCPUPercent == 0 {
		c.Limits.MaxCPUPercent = 200
	}
	if c.Limits.MaxDiskMB == 0 {
		c.Limits.MaxDiskMB = 1024
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 100
	}
	if c.Maintenance.RRule == "" {
		c.Maintenance.RRule = "FREQ=DAILY;BYHOUR=4;BYMINUTE=0"
	}
}

var allowedCommandRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func (c *Config) validate() error {
	if _, err := rrule.StrToRRule(c.Maintenance.RRule); err != nil {
		return fmt.Errorf("maintenance.rrule: %w", err)
	}
	for ownerID, u := range c.Users {
		if u == nil {
			continue
		}
		if u.Username == "" {
			return fmt.Errorf("user %s: username must not be empty", ownerID)
		}
		if err := validateAllowedCommands(u.AllowedCommands); err != nil {
			return fmt.Errorf("user %s: %w", ownerID, err)
		}
	}
	return nil
}

func validateAllowedCommands(cmds []string) error {
	for _, cmd := range cmds {
		if cmd == "" {
			return fmt.Errorf("allowed_commands: empty string not permitted")
		}
		if !allowedCommandRe.MatchString(cmd) {
			return fmt.Errorf("allowed_commands: invalid command name %q (must match [a-zA-Z0-9_-]+)", cmd)
		}
	}
	return nil
}
