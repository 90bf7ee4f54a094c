package landing

import "sync"

// Decision is what the controller wants the engine to do after a tick.
type Decision int

const (
	Hold Decision = iota
	StepUp
	StepDown
)

// Controller applies hysteresis to queue depth observations. Escalation
// needs depth above the backlog threshold for `window` consecutive ticks,
// de-escalation needs depth below the idle threshold for the same window.
// A depth between the two thresholds resets both streaks, so brief spikes
// never flap the mode.
type Controller struct {
	mu            sync.Mutex
	window        int
	backlogStreak int
	idleStreak    int
}

// NewController creates a controller with the given hysteresis window.
// Window values below 1 are clamped to 1.
func NewController(window int) *Controller {
	if window < 1 {
		window = 1
	}
	return &Controller{window: window}
}

// Observe records one queue depth sample against cfg's thresholds and
// returns the resulting decision. Only ever one step per call, even when
// the depth would justify a larger jump.
func (c *Controller) Observe(depth int, cfg ModeConfig) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case depth > cfg.BacklogThreshold:
		c.backlogStreak++
		c.idleStreak = 0
		if c.backlogStreak >= c.window {
			c.backlogStreak = 0
			return StepUp
		}
	case depth < cfg.IdleThreshold:
		c.idleStreak++
		c.backlogStreak = 0
		if c.idleStreak >= c.window {
			c.idleStreak = 0
			return StepDown
		}
	default:
		c.backlogStreak = 0
		c.idleStreak = 0
	}
	return Hold
}

// Reset clears both streaks. Called on every mode switch so that automatic
// adaptation never fights an operator decision: a fresh crossing condition
// must be sustained for a full window before the controller acts again.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backlogStreak = 0
	c.idleStreak = 0
}
