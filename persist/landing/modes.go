package landing

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mode is one of the four named operating modes, ordered by severity.
type Mode int

const (
	ModeIdle Mode = iota
	ModeNormal
	ModePeak
	ModeExtreme
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeNormal:
		return "normal"
	case ModePeak:
		return "peak"
	case ModeExtreme:
		return "extreme"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a mode name (case-insensitive) back to its Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "idle":
		return ModeIdle, nil
	case "normal":
		return ModeNormal, nil
	case "peak":
		return ModePeak, nil
	case "extreme":
		return ModeExtreme, nil
	}
	return ModeNormal, fmt.Errorf("unknown landing mode %q", s)
}

// Next returns the next-higher severity mode, false if already at Extreme.
func (m Mode) Next() (Mode, bool) {
	if m >= ModeExtreme {
		return m, false
	}
	return m + 1, true
}

// Prev returns the next-lower severity mode, false if already at Idle.
func (m Mode) Prev() (Mode, bool) {
	if m <= ModeIdle {
		return m, false
	}
	return m - 1, true
}

// Modes lists all modes in severity order.
func Modes() []Mode {
	return []Mode{ModeIdle, ModeNormal, ModePeak, ModeExtreme}
}

// ModeConfig is one preset tuple driving the flush loop. IdleThreshold is
// expected to be below BacklogThreshold for the preset to be meaningful,
// but that is not enforced.
type ModeConfig struct {
	BatchSize        int           // max tasks drained per flush cycle
	Interval         time.Duration // flush period
	AdaptiveEnabled  bool          // whether the controller may act
	BacklogThreshold int           // depth above which escalation is considered
	IdleThreshold    int           // depth below which de-escalation is considered
}

// Validate rejects non-positive batch size/interval and negative thresholds.
func (c ModeConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("landing config: batch size must be positive, got %d", c.BatchSize)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("landing config: interval must be positive, got %s", c.Interval)
	}
	if c.BacklogThreshold < 0 {
		return fmt.Errorf("landing config: backlog threshold must not be negative, got %d", c.BacklogThreshold)
	}
	if c.IdleThreshold < 0 {
		return fmt.Errorf("landing config: idle threshold must not be negative, got %d", c.IdleThreshold)
	}
	return nil
}

// Registry holds the four mutable mode presets. Updating a preset takes
// effect on the next switch to that mode (or an explicit reapply), never
// silently while the preset is driving the flush loop.
type Registry struct {
	mu      sync.Mutex
	presets map[Mode]ModeConfig
}

// NewRegistry creates a registry seeded with the built-in presets.
func NewRegistry() *Registry {
	return &Registry{
		presets: map[Mode]ModeConfig{
			ModeIdle: {
				BatchSize:        50,
				Interval:         time.Second,
				AdaptiveEnabled:  true,
				BacklogThreshold: 200,
				IdleThreshold:    0,
			},
			ModeNormal: {
				BatchSize:        200,
				Interval:         200 * time.Millisecond,
				AdaptiveEnabled:  true,
				BacklogThreshold: 1000,
				IdleThreshold:    50,
			},
			ModePeak: {
				BatchSize:        500,
				Interval:         100 * time.Millisecond,
				AdaptiveEnabled:  true,
				BacklogThreshold: 5000,
				IdleThreshold:    200,
			},
			ModeExtreme: {
				BatchSize:        1000,
				Interval:         50 * time.Millisecond,
				AdaptiveEnabled:  true,
				BacklogThreshold: 20000,
				IdleThreshold:    1000,
			},
		},
	}
}

// Get returns a copy of the preset for mode.
func (r *Registry) Get(mode Mode) (ModeConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.presets[mode]
	if !ok {
		return ModeConfig{}, fmt.Errorf("no preset for landing mode %s", mode)
	}
	return cfg, nil
}

// Update validates and replaces the preset for mode.
func (r *Registry) Update(mode Mode, cfg ModeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presets[mode]; !ok {
		return fmt.Errorf("no preset for landing mode %s", mode)
	}
	r.presets[mode] = cfg
	return nil
}
