package main

import (
	"math"

	"das-core/car"
)

// Acceleration bounds handed to the command generator, m/s².
const (
	AccelMin = -3.5
	AccelMax = 2.0
)

// PlannerConfig holds the speed PID parameters.
type PlannerConfig struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	IntegralLimit float64 `json:"integral_limit"`
	MaxAccel      float64 `json:"max_accel"`
	MinAccel      float64 `json:"min_accel"`
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Kp:            0.5,
		Ki:            0.1,
		Kd:            0.0,
		IntegralLimit: 10,
		MaxAccel:      AccelMax,
		MinAccel:      AccelMin,
	}
}

// SpeedPlanner tracks a target speed with a discrete PID and outputs the
// desired acceleration.
type SpeedPlanner struct {
	cfg PlannerConfig

	integral    float64
	prevError   float64
	initialized bool
}

func NewSpeedPlanner(cfg PlannerConfig) *SpeedPlanner {
	cfg.MaxAccel = math.Min(cfg.MaxAccel, AccelMax)
	cfg.MinAccel = math.Max(cfg.MinAccel, AccelMin)
	return &SpeedPlanner{cfg: cfg}
}

func (p *SpeedPlanner) Reset() {
	p.integral = 0
	p.prevError = 0
	p.initialized = false
}

// Update returns the acceleration request for the current speed.
func (p *SpeedPlanner) Update(targetSpeed, vEgo, dt float64) float64 {
	err := targetSpeed - vEgo
	if !p.initialized {
		p.prevError = err
		p.initialized = true
	}

	pTerm := p.cfg.Kp * err

	p.integral += err * dt
	// bleed the integral when crossing the setpoint
	if (p.prevError > 0 && err < 0) || (p.prevError < 0 && err > 0) {
		p.integral *= 0.1
	}
	p.integral = car.Clip(p.integral, -p.cfg.IntegralLimit, p.cfg.IntegralLimit)
	iTerm := p.cfg.Ki * p.integral

	var dTerm float64
	if dt > 0 {
		dTerm = p.cfg.Kd * (err - p.prevError) / dt
	}

	accel := pTerm + iTerm + dTerm
	if accel > p.cfg.MaxAccel || accel < p.cfg.MinAccel {
		accel = car.Clip(accel, p.cfg.MinAccel, p.cfg.MaxAccel)
		// anti-windup: back-calculate the integral
		if p.cfg.Ki != 0 {
			p.integral = car.Clip((accel-pTerm-dTerm)/p.cfg.Ki, -p.cfg.IntegralLimit, p.cfg.IntegralLimit)
		}
	}

	p.prevError = err
	return accel
}

// Target builds this cycle's actuator target from the plan. The PID is held
// in reset while cruise is not engaged so it does not wind up.
func (p *SpeedPlanner) Target(plan PlanTarget, cs *car.VehicleState, cruiseEnabled bool, dt float64) car.ActuatorTarget {
	target := car.ActuatorTarget{
		LatActive:        plan.LatActive,
		SteeringAngleDeg: plan.SteerDeg,
		Cancel:           plan.Cancel,
	}
	if !cruiseEnabled {
		p.Reset()
		return target
	}
	target.Accel = p.Update(plan.TargetSpeedMPS, cs.VEgo, dt)
	return target
}

type PlannerDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

func (p *SpeedPlanner) Diagnostics() PlannerDiagnostics {
	return PlannerDiagnostics{
		Error:    p.prevError,
		Integral: p.integral,
		P:        p.cfg.Kp * p.prevError,
		I:        p.cfg.Ki * p.integral,
	}
}
