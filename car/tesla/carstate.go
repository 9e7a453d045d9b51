package tesla

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"das-core/car"
	"das-core/utils"
)

// DASControl is the autopilot's own DAS_control state, echoed back when this
// layer sends longitudinal commands.
type DASControl struct {
	AccState int
	Counter  int
}

// CarState translates decoded Tesla signals into a car.VehicleState.
type CarState struct {
	log     *slog.Logger
	profile Profile

	buttons      []Button
	buttonStates map[car.ButtonType]bool

	speedKF         car.SpeedKF
	steeringPressed car.SteeringPressedFilter

	gears     enumTable[car.GearShifter]
	cruise    enumTable[CruiseState]
	units     enumTable[SpeedUnits]
	eacStatus enumTable[EacStatus]
	eacErrors enumTable[EacErrorCode]

	// Latched for the command generator.
	SteerWarning      EacErrorCode
	AccEnabled        bool
	RightStalkCounter int
	DASControl        DASControl
}

// NewCarState checks every signal the translator reads against the party and
// vehicle maps and resolves the value tables once.
func NewCarState(log *slog.Logger, profile Profile, party, vehicle *utils.CANMap) (*CarState, error) {
	if err := validateSignals(party, partySignals); err != nil {
		return nil, err
	}
	if err := validateSignals(vehicle, vehicleSignals); err != nil {
		return nil, err
	}
	buttons := Buttons(profile)
	if err := validateButtons(vehicle, buttons); err != nil {
		return nil, err
	}

	tables := make(map[string]utils.ValueTable, len(partyEnums))
	for _, r := range partyEnums {
		vt, ok := party.ValueTable(r.Message, r.Signal)
		if !ok {
			return nil, errors.Errorf("value table for %s.%s missing from signal map", r.Message, r.Signal)
		}
		tables[r.Signal] = vt
	}

	cs := &CarState{
		log:          log,
		profile:      profile,
		buttons:      buttons,
		buttonStates: make(map[car.ButtonType]bool, len(buttons)),
		gears:        newEnumTable(tables["DI_gear"], GearMap, car.GearUnknown),
		cruise:       newEnumTable(tables["DI_cruiseState"], cruiseStateNames, CruiseUnknown),
		units:        newEnumTable(tables["DI_speedUnits"], speedUnitNames, SpeedUnitsUnknown),
		eacStatus:    newEnumTable(tables["EPAS3S_eacStatus"], eacStatusNames, EacStatusUnknown),
		eacErrors:    newEnumTable(tables["EPAS3S_eacErrorCode"], eacErrorNames, EacErrorOther),
	}
	for _, b := range buttons {
		cs.buttonStates[b.Type] = false
	}
	return cs, nil
}

// Update implements car.StateTranslator. cp and cpCam are the party bus
// (chassis and autopilot side), cpAdas the vehicle bus.
func (c *CarState) Update(cp, cpCam, cpAdas car.SignalSource, st *car.ControlCycleState) car.VehicleState {
	var ret car.VehicleState

	ret.VEgoRaw = cp.Value("ESP_B", "ESP_vehicleSpeed") * KPH_TO_MS
	ret.VEgo, ret.AEgo = c.speedKF.Update(ret.VEgoRaw)
	ret.Standstill = ret.VEgo < StandstillSpeed

	pedal := cp.Value("DI_systemStatus", "DI_accelPedalPos")
	ret.Gas = pedal / 100.0
	ret.GasPressed = pedal > 0

	ret.Brake = 0
	ret.BrakePressed = cp.Value("IBST_status", "IBST_driverBrakeApply") == 2

	st.HandsOnLevel = int(cp.Value("EPAS3S_sysStatus", "EPAS3S_handsOnLevel"))
	c.SteerWarning = c.eacErrors.lookup(cp.Value("EPAS3S_sysStatus", "EPAS3S_eacErrorCode"))
	ret.SteeringAngleDeg = -cp.Value("EPAS3S_sysStatus", "EPAS3S_internalSAS")
	ret.SteeringRateDeg = -cpAdas.Value("SCCM_steeringAngleSensor", "SCCM_steeringAngleSpeed")
	ret.SteeringTorque = -cp.Value("EPAS3S_sysStatus", "EPAS3S_torsionBarTorque")

	torquePressed := c.steeringPressed.Update(math.Abs(ret.SteeringTorque) > SteeringPressedTorque, SteeringPressedMinCount)
	ret.SteeringPressed = st.HandsOnLevel > 0 || st.Engagement.Override || torquePressed

	eac := c.eacStatus.lookup(cp.Value("EPAS3S_sysStatus", "EPAS3S_eacStatus"))
	ret.SteerFaultPermanent = eac == EacFault
	ret.SteerFaultTemporary = c.SteerWarning != EacErrorIdle && c.SteerWarning != EacErrorHandsOn &&
		eac != EacActive && eac != EacAvailable

	cruise := c.cruise.lookup(cp.Value("DI_state", "DI_cruiseState"))
	units := c.units.lookup(cp.Value("DI_state", "DI_speedUnits"))
	c.AccEnabled = cruise.Engaged()
	ret.CruiseState.Enabled = c.AccEnabled
	ret.CruiseState.Available = cruise == CruiseStandby || c.AccEnabled
	ret.CruiseState.Speed = units.ToMS(cp.Value("DI_state", "DI_digitalSpeed"))
	// resume from stop needs nothing special
	ret.CruiseState.Standstill = false
	ret.CruiseState.SpeedLimit = speedLimit(cpCam.Value("DAS_status", "DAS_fusedSpeedLimit"), units)

	ret.GearShifter = c.gears.lookup(cp.Value("DI_systemStatus", "DI_gear"))

	ret.ButtonEvents = c.updateButtons(cpAdas, st.Scheduler.Frame())

	ret.DoorOpen = cp.Value("UI_warning", "anyDoorOpen") == 1
	ret.LeftBlinker = cpAdas.Value("ID3F5VCFRONT_lighting", "VCFRONT_indicatorLeftRequest") != 0
	ret.RightBlinker = cpAdas.Value("ID3F5VCFRONT_lighting", "VCFRONT_indicatorRightRequest") != 0
	ret.SeatbeltUnlatched = cp.Value("UI_warning", "buckleStatus") != 1

	if c.profile.EnableBSM {
		ret.LeftBlindspot = cpCam.Value("DAS_status", "DAS_blindSpotRearLeft") != 0
		ret.RightBlindspot = cpCam.Value("DAS_status", "DAS_blindSpotRearRight") != 0
	}

	ret.StockAeb = cpCam.Value("DAS_control", "DAS_aebEvent") == 1

	c.DASControl = DASControl{
		AccState: int(cpCam.Value("DAS_control", "DAS_accState")),
		Counter:  int(cpCam.Value("DAS_control", "DAS_controlCounter")),
	}
	// Our own stalk presses are looped back on the vehicle bus. They decode as
	// a cancel edge and advance the counter, which agrees with what the press
	// asked for.
	c.RightStalkCounter = int(cpAdas.Value("SCCM_rightStalk", "SCCM_rightStalkCounter"))

	return ret
}

func (c *CarState) updateButtons(cpAdas car.SignalSource, frame uint64) []car.ButtonEvent {
	var events []car.ButtonEvent
	for _, b := range c.buttons {
		if b.MuxSignal != "" && int(cpAdas.Value(b.Message, b.MuxSignal)) != b.Mux {
			continue
		}
		state := b.pressed(cpAdas.Value(b.Message, b.Signal))
		if c.buttonStates[b.Type] != state {
			events = append(events, car.ButtonEvent{Type: b.Type, Pressed: state, Frame: frame})
			c.log.Debug("button", "type", b.Type, "pressed", state, "frame", frame)
		}
		c.buttonStates[b.Type] = state
	}
	return events
}

// speedLimit converts the fused speed limit to m/s. 0 and 155 mean no limit.
func speedLimit(raw float64, units SpeedUnits) float64 {
	if raw == 0 || raw == 155 {
		return 0
	}
	return units.ToMS(raw)
}
