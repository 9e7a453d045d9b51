package tesla

import (
	"log/slog"
	"math"

	"das-core/car"
)

// CarController turns the planner's target into Tesla command frames.
type CarController struct {
	log      *slog.Logger
	profile  Profile
	packer   *TeslaCAN
	carState *CarState
	override *OverrideDetector
}

// NewCarController reads the latched autopilot counters from carState.
func NewCarController(log *slog.Logger, profile Profile, packer *TeslaCAN, carState *CarState) *CarController {
	return &CarController{
		log:      log,
		profile:  profile,
		packer:   packer,
		carState: carState,
		override: NewOverrideDetector(log, profile.TorqueBlending),
	}
}

// DetectOverride runs the override detector on the lateral request before it
// is gated by lane assist, so the engagement policy sees the result next
// cycle.
func (c *CarController) DetectOverride(latRequested bool, targetAngleDeg float64, cs *car.VehicleState, st *car.ControlCycleState, nowNanos int64) bool {
	return c.override.Update(latRequested, targetAngleDeg, cs, st, nowNanos)
}

// Update implements car.CommandGenerator. It reads the override from st, set
// by DetectOverride earlier in the cycle.
func (c *CarController) Update(target car.ActuatorTarget, cs *car.VehicleState, st *car.ControlCycleState, nowNanos int64) (car.ActuatorTarget, []car.CanMsg) {
	var sends []car.CanMsg
	wasLatched := st.CancelLatched
	st.CancelLatched = target.Cancel || st.CancelLatched

	override := st.Engagement.Override
	handsOnFault := st.HandsOnLevel >= HandsOnFaultLevel

	lkasEnabled := target.LatActive && !handsOnFault
	if c.profile.TorqueBlending {
		lkasEnabled = target.LatActive && !override
	}

	if st.Scheduler.Every(SteerStep) {
		applyAngle := cs.SteeringAngleDeg
		if lkasEnabled {
			applyAngle = target.SteeringAngleDeg
			if c.profile.TorqueBlending {
				applyAngle = blendTorque(applyAngle, cs.SteeringTorque)
			}
			applyAngle = car.ApplyStdSteerAngleLimits(applyAngle, st.ApplyAngleLast, cs.VEgo, AngleLimits)
			// keep the request where the EPS will accept it
			applyAngle = car.Clip(applyAngle, cs.SteeringAngleDeg-SteerAngleGuard, cs.SteeringAngleDeg+SteerAngleGuard)
		}
		st.ApplyAngleLast = applyAngle

		controlType := SteerControlAngle
		if c.profile.Engagement == EngagementStalk {
			controlType = SteerControlLaneKeepAssist
		}
		msg, err := c.packer.CreateSteeringControl(applyAngle, lkasEnabled, st.SteerCounter.Next(), controlType)
		if err != nil {
			c.log.Error("steering control", "error", err)
		} else {
			sends = append(sends, msg)
		}
	}

	// Cruise on while we want it off. Debounced for the enable/disable race.
	if !st.Engagement.CruiseEnabled && cs.CruiseState.Enabled {
		if !st.Engagement.Mismatch.Running() {
			st.Engagement.Mismatch.Start(nowNanos)
		} else if st.Engagement.Mismatch.Elapsed(nowNanos) > CruiseMismatchDebounce {
			st.CancelLatched = true
		}
	} else {
		st.Engagement.Mismatch.Stop()
	}

	if !c.profile.TorqueBlending && c.profile.Engagement == EngagementToggle && handsOnFault {
		st.CancelLatched = true
	}

	// unlatch only once the vehicle reports cruise off
	if !cs.CruiseState.Enabled {
		st.CancelLatched = false
	}
	if st.CancelLatched != wasLatched {
		c.log.Debug("cancel latch", "latched", st.CancelLatched, "frame", st.Scheduler.Frame())
	}

	if c.profile.OwnLongitudinal {
		if msg, ok := c.longitudinal(target.Accel, cs, st); ok {
			sends = append(sends, msg)
		}
	} else if st.Scheduler.Every(CancelStep) {
		if msg, ok := c.stalkCancel(st); ok {
			sends = append(sends, msg)
		}
	}

	target.SteeringAngleDeg = st.ApplyAngleLast
	return target, sends
}

func (c *CarController) longitudinal(accel float64, cs *car.VehicleState, st *car.ControlCycleState) (car.CanMsg, bool) {
	das := c.carState.DASControl
	if st.CancelLatched {
		msg, err := c.packer.CreateCancelCommand((das.Counter + 1) % DASControlCounterModulus)
		if err != nil {
			c.log.Error("cancel command", "error", err)
			return car.CanMsg{}, false
		}
		return msg, true
	}

	targetSpeed := math.Max(cs.VEgo+accel*AccelToSpeedMultiplier, 0)
	maxAccel := math.Max(accel, 0)
	minAccel := math.Min(accel, 0)
	msg, err := c.packer.CreateLongitudinalCommand(das.AccState, targetSpeed, minAccel, maxAccel, das.Counter)
	if err != nil {
		c.log.Error("longitudinal command", "error", err)
		return car.CanMsg{}, false
	}
	return msg, true
}

// stalkCancel alternates the stalk between up and idle so the vehicle sees a
// falling edge between presses and does not shift to neutral.
func (c *CarController) stalkCancel(st *car.ControlCycleState) (car.CanMsg, bool) {
	if !st.CancelLatched {
		st.LastStalkPress = 0
		return car.CanMsg{}, false
	}
	position := StalkUp1
	if st.LastStalkPress != 0 {
		position = StalkIdle
	}
	counter := (c.carState.RightStalkCounter + 1) % RightStalkCounterModulus
	msg, err := c.packer.RightStalkPress(counter, position)
	if err != nil {
		c.log.Error("right stalk press", "error", err)
		return car.CanMsg{}, false
	}
	st.LastStalkPress = position
	return msg, true
}

// blendTorque nudges the requested angle by the driver's torque outside the
// deadzone. Torque against the request moves it faster.
func blendTorque(angle, torque float64) float64 {
	if math.Abs(torque) <= TorqueToAngleDeadzone {
		return angle
	}
	excess := torque - math.Copysign(TorqueToAngleDeadzone, torque)
	excess = car.Clip(excess, -TorqueToAngleClip, TorqueToAngleClip)
	multiplier := float64(TorqueToAngleMultiplierInner)
	if torque*angle > 0 {
		multiplier = TorqueToAngleMultiplierOuter
	}
	return angle + excess*multiplier
}
