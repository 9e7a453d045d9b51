package car

// StateTranslator turns the three channel snapshots into a VehicleState.
// It reads the override flag computed by the previous cycle from st.
type StateTranslator interface {
	Update(cp, cpCam, cpAdas SignalSource, st *ControlCycleState) VehicleState
}

// EngagementPolicy mutates the engagement flags from button edges and
// safety conditions.
type EngagementPolicy interface {
	Update(cs *VehicleState, st *ControlCycleState, nowNanos int64)
}

// CommandGenerator produces this cycle's outbound frames and returns the
// target with the steering angle replaced by the applied one.
type CommandGenerator interface {
	Update(target ActuatorTarget, cs *VehicleState, st *ControlCycleState, nowNanos int64) (ActuatorTarget, []CanMsg)
}
