// Package mixstatus consumes the ordered stream of DeckState records the
// status emitter produces and derives higher-level nowPlaying/stopped/
// setStarted/setEnded transitions describing the state of a DJ set
// (spec.md §4.4).
package mixstatus

import "time"

// Mode selects which promotion rule set governs "live" deck selection
// (spec.md §4.4).
type Mode int

const (
	// SmartTiming promotes on play-time threshold, interrupt-tolerant
	// demotion, and immediate promotion when no other deck is live.
	SmartTiming Mode = iota
	// WaitsForSilence additionally requires the currently-live deck to go
	// non-playing (or off-air, if capable) before a threshold promotion.
	WaitsForSilence
	// FollowsMaster promotes and demotes solely off the isMaster flag.
	FollowsMaster
)

func (m Mode) String() string {
	switch m {
	case SmartTiming:
		return "SmartTiming"
	case WaitsForSilence:
		return "WaitsForSilence"
	case FollowsMaster:
		return "FollowsMaster"
	default:
		return "Mode(unknown)"
	}
}

// Config holds the mix-status processor's tunables (spec.md §4.4, §6).
type Config struct {
	AllowedInterruptBeats int
	BeatsUntilReported    int
	TimeBetweenSets       time.Duration
	HasOnAirCapabilities  bool
	ReportRequiresSilence bool
	Mode                  Mode
}

// DefaultConfig returns the documented defaults (spec.md §4.4).
func DefaultConfig() Config {
	return Config{
		AllowedInterruptBeats: 8,
		BeatsUntilReported:    128,
		TimeBetweenSets:       30 * time.Second,
		HasOnAirCapabilities:  true,
		ReportRequiresSilence: false,
		Mode:                  SmartTiming,
	}
}

// Option customizes a Config built from DefaultConfig.
type Option func(*Config)

func WithMode(m Mode) Option                      { return func(c *Config) { c.Mode = m } }
func WithAllowedInterruptBeats(n int) Option      { return func(c *Config) { c.AllowedInterruptBeats = n } }
func WithBeatsUntilReported(n int) Option         { return func(c *Config) { c.BeatsUntilReported = n } }
func WithTimeBetweenSets(d time.Duration) Option  { return func(c *Config) { c.TimeBetweenSets = d } }
func WithHasOnAirCapabilities(v bool) Option      { return func(c *Config) { c.HasOnAirCapabilities = v } }
func WithReportRequiresSilence(v bool) Option     { return func(c *Config) { c.ReportRequiresSilence = v } }

// bpmToSeconds converts a tempo (BPM) and pitch adjustment (percent) into
// the real-world duration of one beat (spec.md §4.4).
func bpmToSeconds(bpm, pitchPercent float64) float64 {
	return 60 / (bpm * (1 + pitchPercent/100))
}

// requiredDuration is how long beats must elapse at bpm/pitch (spec.md
// §4.4's beat-to-milliseconds conversion).
func requiredDuration(beats int, bpm, pitchPercent float64) time.Duration {
	ms := float64(beats) * bpmToSeconds(bpm, pitchPercent) * 1000
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}
