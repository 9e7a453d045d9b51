package tesla

import "testing"

func TestBuiltinTables(t *testing.T) {
	party, vehicle := testMaps(t)

	for _, r := range append(partySignals, partyEnums...) {
		if !party.HasSignal(r.Message, r.Signal) {
			t.Errorf("party map lacks %s.%s", r.Message, r.Signal)
		}
	}
	for _, r := range vehicleSignals {
		if !vehicle.HasSignal(r.Message, r.Signal) {
			t.Errorf("vehicle map lacks %s.%s", r.Message, r.Signal)
		}
	}
	for _, rates := range [][]MessageRate{PartyMessages, CamMessages} {
		for _, m := range rates {
			if _, err := party.FrameByName(m.Name); err != nil {
				t.Error(err)
			}
		}
	}
	for _, m := range VehicleMessages {
		if _, err := vehicle.FrameByName(m.Name); err != nil {
			t.Error(err)
		}
	}
	for _, p := range []Profile{{Engagement: EngagementStalk}, {Engagement: EngagementToggle}} {
		if err := validateButtons(vehicle, Buttons(p)); err != nil {
			t.Errorf("%s buttons: %v", p.Engagement, err)
		}
	}

	fd, _ := party.FrameByName("DAS_steeringControl")
	if fd.ID != AddrSteeringControl || fd.DLC != 4 {
		t.Errorf("DAS_steeringControl %+v", fd)
	}
	fd, _ = vehicle.FrameByName("SCCM_rightStalk")
	if fd.ID != AddrRightStalk || fd.DLC != 3 {
		t.Errorf("SCCM_rightStalk %+v", fd)
	}
	gears, _ := party.ValueTable("DI_systemStatus", "DI_gear")
	if gears[4] != "DI_GEAR_D" {
		t.Errorf("gear table %v", gears)
	}
}
