package tesla

import (
	"testing"

	"das-core/car"
	"das-core/utils"
)

func testMaps(t *testing.T) (*utils.CANMap, *utils.CANMap) {
	t.Helper()
	party, vehicle, err := LoadCANMaps()
	if err != nil {
		t.Fatalf("LoadCANMaps: %v", err)
	}
	return party, vehicle
}

// signals is one cycle's worth of decoded values for all three channels.
type signals struct {
	cp, cpCam, cpAdas utils.Snapshot
}

// driving is a car in drive at speedKph with cruise in standby, EPS
// available and no driver input.
func driving(speedKph float64) signals {
	cp := utils.Snapshot{}
	cp.Set("ESP_B", "ESP_vehicleSpeed", speedKph).
		Set("DI_systemStatus", "DI_gear", 4).
		Set("DI_state", "DI_cruiseState", 1).
		Set("DI_state", "DI_speedUnits", 1).
		Set("EPAS3S_sysStatus", "EPAS3S_eacStatus", 1).
		Set("EPAS3S_sysStatus", "EPAS3S_eacErrorCode", 0).
		Set("UI_warning", "buckleStatus", 1)
	return signals{cp: cp, cpCam: utils.Snapshot{}, cpAdas: utils.Snapshot{}}
}

func newTestCarState(t *testing.T, p Profile) *CarState {
	t.Helper()
	party, vehicle := testMaps(t)
	cs, err := NewCarState(utils.Discard(), p, party, vehicle)
	if err != nil {
		t.Fatalf("NewCarState: %v", err)
	}
	return cs
}

func newTestController(t *testing.T, p Profile) (*CarController, *utils.CANMap, *utils.CANMap) {
	t.Helper()
	party, vehicle := testMaps(t)
	cs, err := NewCarState(utils.Discard(), p, party, vehicle)
	if err != nil {
		t.Fatalf("NewCarState: %v", err)
	}
	packer, err := NewTeslaCAN(party, vehicle)
	if err != nil {
		t.Fatalf("NewTeslaCAN: %v", err)
	}
	return NewCarController(utils.Discard(), p, packer, cs), party, vehicle
}

// step runs one controller cycle and advances the frame like Interface.Apply.
func step(cc *CarController, target car.ActuatorTarget, cs *car.VehicleState, st *car.ControlCycleState, now int64) (car.ActuatorTarget, []car.CanMsg) {
	out, sends := cc.Update(target, cs, st, now)
	st.Scheduler.Advance()
	return out, sends
}

func findFrame(sends []car.CanMsg, id uint32) (car.CanMsg, bool) {
	for _, m := range sends {
		if m.Frame.ID == id {
			return m, true
		}
	}
	return car.CanMsg{}, false
}
