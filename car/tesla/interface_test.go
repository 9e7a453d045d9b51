package tesla

import (
	"testing"
	"time"

	"das-core/car"
	"das-core/utils"
)

func newTestInterface(t *testing.T, p Profile) *Interface {
	t.Helper()
	party, vehicle := testMaps(t)
	ci, err := NewInterface(utils.Discard(), p, party, vehicle)
	if err != nil {
		t.Fatalf("NewInterface: %v", err)
	}
	return ci
}

func TestInterfaceStalkEngageAndSteer(t *testing.T) {
	ci := newTestInterface(t, DefaultProfile())
	target := car.ActuatorTarget{LatActive: true, SteeringAngleDeg: 30}

	cycle := func(stalk float64) car.ActuatorTarget {
		s := driving(0)
		s.cpAdas.Set("SCCM_rightStalk", "SCCM_rightStalkStatus", stalk)
		cs := ci.Update(s.cp, s.cpCam, s.cpAdas, 0)
		out, _ := ci.Apply(target, &cs, 0)
		return out
	}

	if out := cycle(StalkIdle); out.SteeringAngleDeg != 0 {
		t.Errorf("not engaged: applied %v, want measured 0", out.SteeringAngleDeg)
	}
	cycle(StalkDown1)
	out := cycle(StalkIdle)
	if !ci.Engagement().LaneAssistEnabled {
		t.Fatal("half press and release in drive should engage lane assist")
	}
	if out.SteeringAngleDeg != 7.0 {
		t.Errorf("applied %v, want rate bound 7.0", out.SteeringAngleDeg)
	}
	if ci.State.Scheduler.Frame() != 3 {
		t.Errorf("frame = %d, want 3", ci.State.Scheduler.Frame())
	}
}

func TestInterfacePermanentFaultBlocksSteering(t *testing.T) {
	ci := newTestInterface(t, DefaultProfile())
	ci.State.Engagement.LaneAssistEnabled = true

	s := driving(0)
	s.cp.Set("EPAS3S_sysStatus", "EPAS3S_eacStatus", 3).
		Set("EPAS3S_sysStatus", "EPAS3S_internalSAS", -4)
	cs := ci.Update(s.cp, s.cpCam, s.cpAdas, 0)
	out, _ := ci.Apply(car.ActuatorTarget{LatActive: true, SteeringAngleDeg: 30}, &cs, 0)
	if out.SteeringAngleDeg != 4 || out.LatActive {
		t.Errorf("faulted EPS: %+v", out)
	}
}

func TestInterfaceHandsOnFaultCancelsToggle(t *testing.T) {
	party, _ := testMaps(t)
	ci := newTestInterface(t, Profile{Engagement: EngagementToggle, OwnLongitudinal: true})
	ci.State.Engagement.LaneAssistEnabled = true

	s := driving(50)
	s.cp.Set("DI_state", "DI_cruiseState", 2).
		Set("EPAS3S_sysStatus", "EPAS3S_handsOnLevel", 3)
	cs := ci.Update(s.cp, s.cpCam, s.cpAdas, 0)
	_, sends := ci.Apply(car.ActuatorTarget{LatActive: true, SteeringAngleDeg: 5}, &cs, 0)

	if !ci.State.Engagement.Override {
		t.Error("hands-on fault with lateral requested should override")
	}
	if !ci.State.CancelLatched {
		t.Fatal("hands-on fault should latch a cruise cancel")
	}
	msg, ok := findFrame(sends, AddrDASControl)
	if !ok {
		t.Fatal("no DAS_control frame sent")
	}
	values, err := party.DecodeFrame(msg.Frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if values["DAS_accState"] != AccStateCancelSilent {
		t.Errorf("DAS_accState = %v, want %d", values["DAS_accState"], AccStateCancelSilent)
	}
}

func TestInterfaceOverrideHoldsWithBlending(t *testing.T) {
	ci := newTestInterface(t, DefaultProfile())
	ci.State.Engagement.LaneAssistEnabled = true
	target := car.ActuatorTarget{LatActive: true, SteeringAngleDeg: 30}

	cycle := func(handsOn float64, now time.Duration) car.VehicleState {
		s := driving(50)
		s.cp.Set("EPAS3S_sysStatus", "EPAS3S_handsOnLevel", handsOn)
		cs := ci.Update(s.cp, s.cpCam, s.cpAdas, int64(now))
		ci.Apply(target, &cs, int64(now))
		return cs
	}

	cycle(3, 0)
	if !ci.State.Engagement.Override {
		t.Fatal("hard hands-on should override")
	}

	cs := cycle(0, 10*time.Millisecond)
	if !cs.SteeringPressed {
		t.Error("previous cycle's override should read as steering pressed")
	}
	if !ci.State.Engagement.Override {
		t.Error("override should hold while the wheel disagrees with the request")
	}
	if ci.Engagement().LaneAssistEnabled {
		t.Error("override should keep lane assist off")
	}

	cycle(0, 1100*time.Millisecond)
	if ci.State.Engagement.Override {
		t.Error("override should expire after a second without hands-on force")
	}
}

func TestInterfaceCruiseGatesAccel(t *testing.T) {
	ci := newTestInterface(t, DefaultProfile())
	s := driving(50)
	cs := ci.Update(s.cp, s.cpCam, s.cpAdas, 0)
	out, sends := ci.Apply(car.ActuatorTarget{Accel: 1.5}, &cs, 0)
	if out.Accel != 0 {
		t.Errorf("accel %v passed through with cruise disengaged", out.Accel)
	}
	if len(sends) != 2 {
		t.Errorf("%d messages, want steering and DAS_control", len(sends))
	}
}
