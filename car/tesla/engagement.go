package tesla

import (
	"log/slog"

	"das-core/car"
)

// NewEngagementPolicy picks the engagement model for the session.
func NewEngagementPolicy(log *slog.Logger, p Profile) car.EngagementPolicy {
	if p.Engagement == EngagementToggle {
		return &ToggleEngagement{log: log}
	}
	return &StalkEngagement{log: log, AccFirst: p.AccFirst, Combo: p.Combo}
}

// StalkEngagement arms the two axes from the right stalk. A half press
// (altButton1) starts a candidate, pushing through to a full press
// (altButton2) selects the second axis, and releasing the stalk in drive
// commits it. AccFirst picks which axis a short press arms; Combo arms both
// on a full press.
type StalkEngagement struct {
	log      *slog.Logger
	AccFirst bool
	Combo    bool
}

func (p *StalkEngagement) Update(cs *car.VehicleState, st *car.ControlCycleState, nowNanos int64) {
	e := &st.Engagement
	before := *e

	for _, b := range cs.ButtonEvents {
		switch {
		case b.Type == car.ButtonAltButton1 && b.Pressed:
			e.LastFullPress = false
			e.LastGear = cs.GearShifter
		case b.Type == car.ButtonAltButton2 && b.Pressed:
			e.LastFullPress = true
		case b.Type == car.ButtonAltButton1 && !b.Pressed:
			if e.LastGear == car.GearDrive && cs.GearShifter == car.GearDrive {
				p.commit(e)
			}
		}
	}
	if st.HandsOnLevel >= HandsOnFaultLevel {
		e.LaneAssistEnabled = false
	}
	if !cs.CruiseState.Available {
		e.CruiseEnabled = false
	}

	forcedDisable(cs, e)
	logTransition(p.log, before, *e, st.Scheduler.Frame())
}

// commit only ever enables; disabling is left to cancel and the forced rules.
func (p *StalkEngagement) commit(e *car.EngagementState) {
	short := !e.LastFullPress
	if p.AccFirst {
		if short || p.Combo {
			e.CruiseEnabled = true
		}
		if e.LastFullPress {
			e.LaneAssistEnabled = true
		}
		return
	}
	if short || p.Combo {
		e.LaneAssistEnabled = true
	}
	if e.LastFullPress {
		e.CruiseEnabled = true
	}
}

// ToggleEngagement flips lane assist on each release of altButton2. Cruise
// follows the vehicle's own cruise state.
type ToggleEngagement struct {
	log *slog.Logger
}

func (p *ToggleEngagement) Update(cs *car.VehicleState, st *car.ControlCycleState, nowNanos int64) {
	e := &st.Engagement
	before := *e

	for _, b := range cs.ButtonEvents {
		if b.Type == car.ButtonAltButton2 && !b.Pressed {
			e.LaneAssistEnabled = !e.LaneAssistEnabled
		}
	}
	e.CruiseEnabled = cs.CruiseState.Enabled
	if st.HandsOnLevel >= HandsOnFaultLevel {
		e.LaneAssistEnabled = false
	}

	forcedDisable(cs, e)
	logTransition(p.log, before, *e, st.Scheduler.Frame())
}

// forcedDisable applies the disable rules shared by both models. It runs
// after the voluntary toggles so it always wins.
func forcedDisable(cs *car.VehicleState, e *car.EngagementState) {
	for _, b := range cs.ButtonEvents {
		if b.Type == car.ButtonCancel {
			e.Disable()
		}
	}
	if cs.BrakePressed && (!e.LastBrakePressed || !cs.Standstill) {
		e.LaneAssistEnabled = false
	}
	if e.Override {
		e.LaneAssistEnabled = false
	}
	e.LastBrakePressed = cs.BrakePressed
}

func logTransition(log *slog.Logger, before, after car.EngagementState, frame uint64) {
	if before.LaneAssistEnabled == after.LaneAssistEnabled && before.CruiseEnabled == after.CruiseEnabled {
		return
	}
	log.Debug("engagement changed",
		"lane_assist", after.LaneAssistEnabled,
		"cruise", after.CruiseEnabled,
		"frame", frame,
	)
}
