package car

import "time"

// EngagementState holds the two control axes and the bookkeeping needed to
// evaluate them across cycles.
type EngagementState struct {
	LaneAssistEnabled bool `json:"lane_assist_enabled"`
	CruiseEnabled     bool `json:"cruise_enabled"`

	LastFullPress    bool        `json:"-"`
	LastGear         GearShifter `json:"-"`
	LastBrakePressed bool        `json:"-"`
	LastHandsOnNanos int64       `json:"-"`
	Override         bool        `json:"override"`
	Mismatch         Timer       `json:"-"`
}

// Disable clears both axes.
func (e *EngagementState) Disable() {
	e.LaneAssistEnabled = false
	e.CruiseEnabled = false
}

// ControlCycleState is all mutable state owned by the control-cycle caller.
// It is threaded by reference through translator, engagement and command
// generation; nothing here is shared with another goroutine.
type ControlCycleState struct {
	Scheduler  FrameScheduler
	Engagement EngagementState

	HandsOnLevel   int
	ApplyAngleLast float64

	SteerCounter   Counter
	CancelLatched  bool
	LastStalkPress int
}

func NewControlCycleState() *ControlCycleState {
	return &ControlCycleState{
		SteerCounter: NewCounter(16),
	}
}

// FrameScheduler counts control cycles and gates work to sub-multiples of
// the control rate.
type FrameScheduler struct {
	frame uint64
}

func (s *FrameScheduler) Frame() uint64 { return s.frame }

// Every reports whether the current frame is a multiple of n.
func (s *FrameScheduler) Every(n uint64) bool {
	if n <= 1 {
		return true
	}
	return s.frame%n == 0
}

func (s *FrameScheduler) Advance() { s.frame++ }

// Counter is a modulo message counter owned by one message family.
type Counter struct {
	value   int
	modulus int
}

func NewCounter(modulus int) Counter {
	return Counter{modulus: modulus}
}

func (c *Counter) Value() int { return c.value }

// Next returns the current value and advances the counter.
func (c *Counter) Next() int {
	v := c.value
	if c.modulus > 0 {
		c.value = (c.value + 1) % c.modulus
	}
	return v
}

// Timer is a monotonic start timestamp. A stopped timer is the "none" state.
type Timer struct {
	start   int64
	running bool
}

// Start records now unless the timer is already running.
func (t *Timer) Start(nowNanos int64) {
	if !t.running {
		t.start = nowNanos
		t.running = true
	}
}

func (t *Timer) Stop() { t.running = false }

func (t *Timer) Running() bool { return t.running }

// Elapsed returns the time since Start, or 0 when stopped.
func (t *Timer) Elapsed(nowNanos int64) time.Duration {
	if !t.running {
		return 0
	}
	return time.Duration(nowNanos - t.start)
}
