package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.einride.tech/can"

	"das-core/car/tesla"
	"das-core/export"
	"das-core/utils"
)

const testScenario = `{
  "meta": {"name": "test"},
  "timing": {"duration_s": 10},
  "defaults": {"lat_active": true, "steer_deg": 5, "target_speed_mps": 20}
}`

type fakeWriter struct {
	frames []can.Frame
	err    error
}

func (w *fakeWriter) WriteFrame(ctx context.Context, f can.Frame) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) count(id uint32) int {
	n := 0
	for _, f := range w.frames {
		if f.ID == id {
			n++
		}
	}
	return n
}

type fakeReader struct {
	frames chan can.Frame
}

func (r *fakeReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	}
}

func (r *fakeReader) Close() error { return nil }

type recordingPublisher struct {
	snaps []export.Snapshot
}

func (p *recordingPublisher) Publish(ctx context.Context, s export.Snapshot) error {
	p.snaps = append(p.snaps, s)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// stalledPublisher blocks until its context gives up.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, s export.Snapshot) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

type failingReader struct {
	reads int
}

func (r *failingReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	r.reads++
	return can.Frame{}, errors.New("network is down")
}

func (r *failingReader) Close() error { return nil }

type testRunner struct {
	*Runner
	party, vehicle *utils.CANMap
	partyTX        *fakeWriter
	vehicleTX      *fakeWriter
}

func newTestRunner(t *testing.T, profile tesla.Profile, scenario string) testRunner {
	t.Helper()
	party, vehicle, err := tesla.LoadCANMaps()
	if err != nil {
		t.Fatalf("LoadCANMaps: %v", err)
	}
	ci, err := tesla.NewInterface(utils.Discard(), profile, party, vehicle)
	if err != nil {
		t.Fatalf("NewInterface: %v", err)
	}
	s, err := newStores(party, vehicle, true)
	if err != nil {
		t.Fatalf("newStores: %v", err)
	}
	scen, err := ParseScenario([]byte(scenario))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}

	r := newRunner(utils.Discard(), ci, scen, s)
	tr := testRunner{Runner: r, party: party, vehicle: vehicle, partyTX: &fakeWriter{}, vehicleTX: &fakeWriter{}}
	r.writers[tesla.BusParty] = tr.partyTX
	r.writers[tesla.BusVehicle] = tr.vehicleTX
	return tr
}

// feed decodes a frame built from values into the party store.
func (tr testRunner) feed(t *testing.T, message string, values map[string]float64) {
	t.Helper()
	f, err := tr.party.EncodeFrame(message, values)
	if err != nil {
		t.Fatalf("EncodeFrame %s: %v", message, err)
	}
	if !tr.stores.party.Update(f) {
		t.Fatalf("party store ignored %s", message)
	}
}

func (tr testRunner) driving(t *testing.T, speedKph, cruiseState float64) {
	tr.feed(t, "ESP_B", map[string]float64{"ESP_vehicleSpeed": speedKph})
	tr.feed(t, "DI_systemStatus", map[string]float64{"DI_gear": 4})
	tr.feed(t, "DI_state", map[string]float64{"DI_cruiseState": cruiseState, "DI_speedUnits": 1})
	tr.feed(t, "EPAS3S_sysStatus", map[string]float64{"EPAS3S_eacStatus": 1})
	tr.feed(t, "UI_warning", map[string]float64{"buckleStatus": 1})
}

func (tr testRunner) steps(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		now := tr.start.Add(time.Duration(tr.ci.State.Scheduler.Frame()) * cycle)
		if err := tr.step(context.Background(), now); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestStepTransmitSchedule(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	tr.driving(t, 50, 1)

	tr.steps(t, 10)

	if got := tr.partyTX.count(tesla.AddrSteeringControl); got != 5 {
		t.Errorf("steering frames = %d, want 5 (every 2nd cycle)", got)
	}
	if got := tr.partyTX.count(tesla.AddrDASControl); got != 10 {
		t.Errorf("DAS_control frames = %d, want 10", got)
	}
	if len(tr.vehicleTX.frames) != 0 {
		t.Errorf("vehicle bus frames = %d, want none without a cancel", len(tr.vehicleTX.frames))
	}
	if tr.sent != 15 {
		t.Errorf("sent = %d, want 15", tr.sent)
	}
	if tr.ci.State.Scheduler.Frame() != 10 {
		t.Errorf("frame = %d, want 10", tr.ci.State.Scheduler.Frame())
	}
}

func TestStepExportsEveryFifthCycle(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	pub := &recordingPublisher{}
	tr.pub = pub
	tr.driving(t, 36, 1)

	tr.steps(t, 11)

	if len(pub.snaps) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(pub.snaps))
	}
	for i, want := range []uint64{0, 5, 10} {
		if pub.snaps[i].Frame != want {
			t.Errorf("snapshot %d frame = %d, want %d", i, pub.snaps[i].Frame, want)
		}
	}
	if v := pub.snaps[0].CarState.VEgoRaw; v < 9.99 || v > 10.01 {
		t.Errorf("v_ego_raw = %v, want 10 m/s", v)
	}
	if pub.snaps[2].MonoTimeNanos != int64(10*cycle) {
		t.Errorf("mono time = %d, want %d", pub.snaps[2].MonoTimeNanos, int64(10*cycle))
	}
}

func TestStepPlannerCancelUsesDASControl(t *testing.T) {
	scen := `{
  "timing": {"duration_s": 5},
  "defaults": {"lat_active": false, "cancel": true}
}`
	tr := newTestRunner(t, tesla.DefaultProfile(), scen)
	tr.driving(t, 50, 2) // vehicle cruise engaged

	tr.steps(t, 1)

	var das can.Frame
	for _, f := range tr.partyTX.frames {
		if f.ID == tesla.AddrDASControl {
			das = f
		}
	}
	values, err := tr.party.DecodeFrame(das)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if values["DAS_accState"] != tesla.AccStateCancelSilent {
		t.Errorf("DAS_accState = %v, want %d", values["DAS_accState"], tesla.AccStateCancelSilent)
	}
	if !tr.ci.State.CancelLatched {
		t.Error("cancel should stay latched while the vehicle reports cruise on")
	}
}

func TestStepStalkCancelOnVehicleBus(t *testing.T) {
	profile := tesla.DefaultProfile()
	profile.OwnLongitudinal = false
	scen := `{
  "timing": {"duration_s": 5},
  "defaults": {"cancel": true}
}`
	tr := newTestRunner(t, profile, scen)
	tr.driving(t, 50, 2)

	tr.steps(t, 11)

	if got := tr.vehicleTX.count(tesla.AddrRightStalk); got != 2 {
		t.Errorf("stalk frames = %d, want 2 (frames 0 and 10)", got)
	}
	if got := tr.partyTX.count(tesla.AddrDASControl); got != 0 {
		t.Errorf("DAS_control frames = %d, want none without own longitudinal", got)
	}
}

func TestStepTransmitError(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	tr.partyTX.err = errors.New("bus off")

	err := tr.step(context.Background(), tr.start)
	if err == nil {
		t.Fatal("expected transmit error")
	}
}

func TestStepStalledExportKeepsCycle(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	tr.pub = stalledPublisher{}
	tr.driving(t, 50, 1)

	start := time.Now()
	tr.steps(t, 1)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cycle took %v behind a stalled exporter", elapsed)
	}
	if got := tr.partyTX.count(tesla.AddrSteeringControl); got != 1 {
		t.Errorf("steering frames = %d, want 1", got)
	}
}

func TestNewStores(t *testing.T) {
	party, vehicle, err := tesla.LoadCANMaps()
	if err != nil {
		t.Fatal(err)
	}

	shared, err := newStores(party, vehicle, true)
	if err != nil {
		t.Fatal(err)
	}
	if shared.cam != shared.party {
		t.Error("shared cam should reuse the party store")
	}

	split, err := newStores(party, vehicle, false)
	if err != nil {
		t.Fatal(err)
	}
	if split.cam == split.party {
		t.Fatal("separate cam interface needs its own store")
	}
	f, err := party.EncodeFrame("DAS_control", map[string]float64{"DAS_accState": 4})
	if err != nil {
		t.Fatal(err)
	}
	if split.party.Update(f) {
		t.Error("party store should not subscribe to DAS_control")
	}
	if !split.cam.Update(f) {
		t.Error("cam store should accept DAS_control")
	}
}

func TestReceiveLoopFeedsStores(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	reader := &fakeReader{frames: make(chan can.Frame, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.receiveLoop(ctx, channel{name: "party", reader: reader, stores: []*utils.SignalStore{tr.stores.party}})
		close(done)
	}()

	f, err := tr.party.EncodeFrame("ESP_B", map[string]float64{"ESP_vehicleSpeed": 72})
	if err != nil {
		t.Fatal(err)
	}
	reader.frames <- f

	deadline := time.Now().Add(2 * time.Second)
	for tr.stores.party.Received("ESP_B") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("frame never reached the store")
		}
		time.Sleep(time.Millisecond)
	}
	if v := tr.stores.party.Snapshot().Value("ESP_B", "ESP_vehicleSpeed"); v != 72 {
		t.Errorf("speed = %v, want 72", v)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop did not stop on cancel")
	}
}

func TestReceiveLoopStopsOnReadError(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	reader := &failingReader{}

	err := tr.receiveLoop(context.Background(), channel{name: "party", reader: reader})
	if err == nil {
		t.Fatal("expected the read error")
	}
	if reader.reads != 1 {
		t.Errorf("reads = %d, want 1", reader.reads)
	}
}

func TestRunStopsOnDeadBus(t *testing.T) {
	tr := newTestRunner(t, tesla.DefaultProfile(), testScenario)
	tr.channels = append(tr.channels, channel{name: "vehicle", reader: &failingReader{}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := tr.Run(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want the bus error", err)
	}
}

func TestLoadMapOverride(t *testing.T) {
	party, vehicle, err := loadMaps(Config{})
	if err != nil {
		t.Fatalf("loadMaps: %v", err)
	}
	if _, err := party.FrameByName("DAS_control"); err != nil {
		t.Error(err)
	}
	if _, err := vehicle.FrameByName("SCCM_rightStalk"); err != nil {
		t.Error(err)
	}

	if _, _, err := loadMaps(Config{PartyMap: "does-not-exist.dbc"}); err == nil {
		t.Error("missing override should fail")
	}
}

func TestLoadMapCSVOverride(t *testing.T) {
	csv := `direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment
ESP,0x145,ESP_B,20,8,ESP_vehicleSpeed,0,16,little,false,0.1,0,0,6553.5,0,kph,coarser speed
`
	path := filepath.Join(t.TempDir(), "party.csv")
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}

	party, _, err := loadMaps(Config{PartyMap: path})
	if err != nil {
		t.Fatalf("loadMaps: %v", err)
	}
	fd, err := party.FrameByName("ESP_B")
	if err != nil {
		t.Fatal(err)
	}
	if fd.Signals[0].Factor != 0.1 {
		t.Errorf("ESP_B factor = %v, want the override's 0.1", fd.Signals[0].Factor)
	}
	if _, err := party.FrameByName("DAS_control"); err != nil {
		t.Errorf("built-in frames should fill the gaps: %v", err)
	}
}
