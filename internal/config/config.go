// Package config assembles the functional-options configuration surface
// this module exposes (spec.md §6).
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/mixstatus"
	"github.com/cartomix/prolink/internal/nfs"
)

// VirtualCDJFirmware is the fixed firmware string the virtual player
// announces as (spec.md §6).
const VirtualCDJFirmware = "1.43"

// DefaultVCDJID is the host id used when none is configured (spec.md §6).
const DefaultVCDJID device.ID = 7

// Config is the fully-resolved configuration for one virtual-CDJ session.
type Config struct {
	Interface     *net.Interface
	VCDJID        device.ID
	DeviceTimeout time.Duration
	Mixstatus     mixstatus.Config
	NFSRetry      nfs.RetryPolicy
	DataDir       string
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithInterface sets the IPv4 interface to announce from. Required for
// connect (spec.md §6).
func WithInterface(iface *net.Interface) Option {
	return func(c *Config) { c.Interface = iface }
}

// WithVCDJID sets the host id. 1..6 enables metadata for unanalyzed media
// (spec.md §6).
func WithVCDJID(id device.ID) Option {
	return func(c *Config) { c.VCDJID = id }
}

// WithDeviceTimeout sets the announce liveness window.
func WithDeviceTimeout(d time.Duration) Option {
	return func(c *Config) { c.DeviceTimeout = d }
}

// WithDataDir sets the directory the local database cache is stored under.
func WithDataDir(dir string) Option {
	return func(c *Config) { c.DataDir = dir }
}

// WithMixstatusMode sets the mix-status promotion mode.
func WithMixstatusMode(mode mixstatus.Mode) Option {
	return func(c *Config) { c.Mixstatus.Mode = mode }
}

// WithMixstatusAllowedInterruptBeats sets the interrupt tolerance for
// live-deck demotion.
func WithMixstatusAllowedInterruptBeats(n int) Option {
	return func(c *Config) { c.Mixstatus.AllowedInterruptBeats = n }
}

// WithMixstatusBeatsUntilReported sets the play-time threshold to promote.
func WithMixstatusBeatsUntilReported(n int) Option {
	return func(c *Config) { c.Mixstatus.BeatsUntilReported = n }
}

// WithMixstatusTimeBetweenSets sets how long silence must last before a
// set is reported ended.
func WithMixstatusTimeBetweenSets(d time.Duration) Option {
	return func(c *Config) { c.Mixstatus.TimeBetweenSets = d }
}

// WithMixstatusHasOnAirCapabilities sets whether isOnAir is authoritative.
func WithMixstatusHasOnAirCapabilities(v bool) Option {
	return func(c *Config) { c.Mixstatus.HasOnAirCapabilities = v }
}

// WithMixstatusReportRequiresSilence requires silence in addition to the
// beat threshold before promoting.
func WithMixstatusReportRequiresSilence(v bool) Option {
	return func(c *Config) { c.Mixstatus.ReportRequiresSilence = v }
}

// WithNFSRetry overrides the NFS client's retry policy ({attempts,
// baseDelayMs, jitter} in spec.md §6).
func WithNFSRetry(policy nfs.RetryPolicy) Option {
	return func(c *Config) { c.NFSRetry = policy }
}

// Default returns a Config with every documented default applied
// (spec.md §6, §4.6, §4.7).
func Default() Config {
	return Config{
		VCDJID:        DefaultVCDJID,
		DeviceTimeout: device.DefaultDeviceTimeout,
		Mixstatus:     mixstatus.DefaultConfig(),
		NFSRetry:      nfs.DefaultRetryPolicy(),
		DataDir:       defaultDataDir(),
	}
}

// New builds a Config from Default(), applying opts in order, and
// validates the result.
func New(opts ...Option) (Config, error) {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether cfg is usable to connect with (spec.md §6:
// interface is "required for connect").
func (c Config) Validate() error {
	if c.Interface == nil {
		return fmt.Errorf("config: interface is required to connect")
	}
	if c.VCDJID == 0 || c.VCDJID > 127 {
		return fmt.Errorf("config: vcdjId must be in 1..127, got %d", c.VCDJID)
	}
	return nil
}

func defaultDataDir() string {
	if dir := os.Getenv("PROLINK_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".prolink"
	}
	return home + "/.prolink"
}
