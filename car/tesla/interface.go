package tesla

import (
	"log/slog"

	"das-core/car"
	"das-core/utils"
)

// Interface sequences one control cycle: Update translates and runs the
// engagement policy, Apply generates the commands and advances the frame.
type Interface struct {
	log     *slog.Logger
	Profile Profile

	CS *CarState
	CC *CarController

	translator car.StateTranslator
	engagement car.EngagementPolicy
	generator  car.CommandGenerator

	State *car.ControlCycleState
}

func NewInterface(log *slog.Logger, profile Profile, party, vehicle *utils.CANMap) (*Interface, error) {
	cs, err := NewCarState(log, profile, party, vehicle)
	if err != nil {
		return nil, err
	}
	packer, err := NewTeslaCAN(party, vehicle)
	if err != nil {
		return nil, err
	}
	cc := NewCarController(log, profile, packer, cs)

	log.Info("tesla interface ready",
		"engagement", profile.Engagement.String(),
		"torque_blending", profile.TorqueBlending,
		"own_longitudinal", profile.OwnLongitudinal,
	)
	return &Interface{
		log:        log,
		Profile:    profile,
		CS:         cs,
		CC:         cc,
		translator: cs,
		engagement: NewEngagementPolicy(log, profile),
		generator:  cc,
		State:      car.NewControlCycleState(),
	}, nil
}

// Update reads the party (cp, cpCam) and vehicle (cpAdas) snapshots.
func (ci *Interface) Update(cp, cpCam, cpAdas car.SignalSource, nowNanos int64) car.VehicleState {
	ret := ci.translator.Update(cp, cpCam, cpAdas, ci.State)
	ci.engagement.Update(&ret, ci.State, nowNanos)
	return ret
}

// Apply runs override detection on the planner's lateral request, gates the
// target by the engagement state and returns the target with the applied
// angle and this cycle's frames.
func (ci *Interface) Apply(target car.ActuatorTarget, cs *car.VehicleState, nowNanos int64) (car.ActuatorTarget, []car.CanMsg) {
	e := ci.State.Engagement
	latRequested := target.LatActive && !cs.SteerFaultPermanent
	ci.CC.DetectOverride(latRequested, target.SteeringAngleDeg, cs, ci.State, nowNanos)

	target.LatActive = latRequested && e.LaneAssistEnabled
	if !e.CruiseEnabled {
		target.Accel = 0
	}

	out, sends := ci.generator.Update(target, cs, ci.State, nowNanos)
	ci.State.Scheduler.Advance()
	return out, sends
}

func (ci *Interface) Engagement() car.EngagementState {
	return ci.State.Engagement
}
