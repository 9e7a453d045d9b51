package main

import (
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"das-core/car/tesla"
	"das-core/export"
	"das-core/utils"
)

const (
	CycleHz    = 100
	ExportStep = 5   // 20 Hz state export
	DiagStep   = 100 // 1 Hz diagnostics
)

const cycle = time.Second / CycleHz

// stores are the three decoded channels of one control cycle. cam is the
// party store itself when the autopilot messages share its interface.
type stores struct {
	party, cam, vehicle *utils.SignalStore
}

func newStores(party, vehicle *utils.CANMap, sharedCam bool) (stores, error) {
	partyMsgs := tesla.MessageNames(tesla.PartyMessages)
	camMsgs := tesla.MessageNames(tesla.CamMessages)

	var s stores
	var err error
	if sharedCam {
		s.party, err = utils.NewSignalStore(party, append(partyMsgs, camMsgs...))
		if err != nil {
			return stores{}, errors.Wrap(err, "party store")
		}
		s.cam = s.party
	} else {
		if s.party, err = utils.NewSignalStore(party, partyMsgs); err != nil {
			return stores{}, errors.Wrap(err, "party store")
		}
		if s.cam, err = utils.NewSignalStore(party, camMsgs); err != nil {
			return stores{}, errors.Wrap(err, "cam store")
		}
	}
	if s.vehicle, err = utils.NewSignalStore(vehicle, tesla.MessageNames(tesla.VehicleMessages)); err != nil {
		return stores{}, errors.Wrap(err, "vehicle store")
	}
	return s, nil
}

// channel is one receive interface and the stores its frames feed.
type channel struct {
	name   string
	reader utils.CANReader
	stores []*utils.SignalStore
}

type Runner struct {
	log     *slog.Logger
	ci      *tesla.Interface
	scen    Scenario
	planner *SpeedPlanner

	stores   stores
	channels []channel
	writers  map[int]utils.CANWriter
	pub      export.Publisher

	start time.Time
	sent  uint64
}

func newRunner(log *slog.Logger, ci *tesla.Interface, scen Scenario, s stores) *Runner {
	return &Runner{
		log:     log,
		ci:      ci,
		scen:    scen,
		planner: NewSpeedPlanner(*scen.Planner),
		stores:  s,
		writers: map[int]utils.CANWriter{},
		pub:     export.Multi{},
		start:   time.Now(),
	}
}

func NewRunner(ctx context.Context, cfg Config, profile tesla.Profile, log *slog.Logger) (*Runner, error) {
	party, vehicle, err := loadMaps(cfg)
	if err != nil {
		return nil, err
	}

	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, errors.Wrap(err, "load scenario")
	}

	ci, err := tesla.NewInterface(log, profile, party, vehicle)
	if err != nil {
		return nil, err
	}

	s, err := newStores(party, vehicle, cfg.SharedCam())
	if err != nil {
		return nil, err
	}

	r := newRunner(log, ci, scen, s)

	partyStores := []*utils.SignalStore{s.party}
	if err := r.openBus(ctx, "party", cfg.PartyIface, tesla.BusParty, partyStores); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.openBus(ctx, "vehicle", cfg.VehicleIface, tesla.BusVehicle, []*utils.SignalStore{s.vehicle}); err != nil {
		r.Close()
		return nil, err
	}
	if !cfg.SharedCam() {
		// receive only; nothing is sent towards the autopilot side
		if err := r.openBus(ctx, "cam", cfg.CamIface, -1, []*utils.SignalStore{s.cam}); err != nil {
			r.Close()
			return nil, err
		}
	}

	pub, err := buildPublishers(ctx, cfg, log)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.pub = pub

	return r, nil
}

// openBus dials iface for receiving and, when bus >= 0, for transmitting.
func (r *Runner) openBus(ctx context.Context, name, iface string, bus int, feeds []*utils.SignalStore) error {
	reader, err := utils.NewSocketCANReader(ctx, iface)
	if err != nil {
		return errors.Wrapf(err, "%s bus", name)
	}
	r.channels = append(r.channels, channel{name: name, reader: reader, stores: feeds})

	if bus < 0 {
		return nil
	}
	writer, err := utils.NewSocketCANWriter(ctx, iface)
	if err != nil {
		return errors.Wrapf(err, "%s bus", name)
	}
	r.writers[bus] = writer
	r.log.Info("bus open", "bus", name, "iface", iface)
	return nil
}

func loadMaps(cfg Config) (party, vehicle *utils.CANMap, err error) {
	party, vehicle, err = tesla.LoadCANMaps()
	if err != nil {
		return nil, nil, err
	}
	if party, err = overrideMap(party, cfg.PartyMap); err != nil {
		return nil, nil, errors.Wrap(err, "party map")
	}
	if vehicle, err = overrideMap(vehicle, cfg.VehicleMap); err != nil {
		return nil, nil, errors.Wrap(err, "vehicle map")
	}
	return party, vehicle, nil
}

// overrideMap loads path (DBC or CSV, chosen by extension) over the built-in
// map. Frames the override does not define come from builtin.
func overrideMap(builtin *utils.CANMap, path string) (*utils.CANMap, error) {
	if path == "" {
		return builtin, nil
	}
	var m *utils.CANMap
	var err error
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		m, err = utils.LoadCANMap(path)
	} else {
		m, err = utils.LoadDBC(path)
	}
	if err != nil {
		return nil, err
	}
	m.Merge(builtin)
	return m, nil
}

func buildPublishers(ctx context.Context, cfg Config, log *slog.Logger) (export.Multi, error) {
	var pubs export.Multi
	for _, name := range cfg.Export {
		var p export.Publisher
		var err error
		switch name {
		case "msgq":
			p, err = export.NewMsgqPublisher(cfg.MsgqName)
		case "redis":
			p, err = export.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisKey, log)
		case "mqtt":
			p, err = export.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log)
		case "http":
			s := export.NewHTTPServer(cfg.HTTPAddr, log)
			s.Start()
			p = s
		default:
			err = errors.Errorf("unknown export backend %q", name)
		}
		if err != nil {
			_ = pubs.Close()
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

func (r *Runner) Close() {
	for _, ch := range r.channels {
		if s, ok := ch.reader.(interface{ ErrorFrames() uint64 }); ok && s.ErrorFrames() > 0 {
			r.log.Warn("bus error frames", "bus", ch.name, "count", s.ErrorFrames())
		}
		_ = ch.reader.Close()
	}
	for bus, w := range r.writers {
		if s, ok := w.(interface{ Sent() uint64 }); ok {
			r.log.Info("bus transmit", "bus", bus, "sent", s.Sent())
		}
		_ = w.Close()
	}
	if r.pub != nil {
		if err := r.pub.Close(); err != nil {
			r.log.Warn("closing exporters", "error", err)
		}
	}
}

func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("starting control loop",
		"scenario", r.scen.Meta.Name,
		"duration_s", r.scen.Timing.DurationS,
		"hz", CycleHz,
	)

	rxCtx, cancel := context.WithCancel(ctx)
	rxErr := make(chan error, len(r.channels))
	var wg sync.WaitGroup
	for _, ch := range r.channels {
		wg.Add(1)
		go func(ch channel) {
			defer wg.Done()
			if err := r.receiveLoop(rxCtx, ch); err != nil {
				rxErr <- err
			}
		}(ch)
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	r.start = time.Now()
	ticker := time.NewTicker(cycle)
	defer ticker.Stop()

	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("context canceled; stopping control loop")
			r.log.Info("completed", "frames", r.ci.State.Scheduler.Frame(), "sent", r.sent)
			return ctx.Err()

		case err := <-rxErr:
			// a dead bus leaves its store stale
			utils.Critical(r.log, "receive failed", "error", err)
			return err

		case now := <-ticker.C:
			if now.Sub(r.start) > endAfter {
				r.log.Info("completed", "frames", r.ci.State.Scheduler.Frame(), "sent", r.sent)
				return nil
			}
			if err := r.step(ctx, now); err != nil {
				utils.Critical(r.log, "control cycle failed", "error", err)
				return err
			}
		}
	}
}

// step runs one control cycle at now.
func (r *Runner) step(ctx context.Context, now time.Time) error {
	elapsed := now.Sub(r.start)
	nowNanos := elapsed.Nanoseconds()
	frame := r.ci.State.Scheduler.Frame()

	cp := r.stores.party.Snapshot()
	cpCam := cp
	if r.stores.cam != r.stores.party {
		cpCam = r.stores.cam.Snapshot()
	}
	cpAdas := r.stores.vehicle.Snapshot()

	cs := r.ci.Update(cp, cpCam, cpAdas, nowNanos)

	plan := EvalTarget(&r.scen, elapsed.Seconds())
	target := r.planner.Target(plan, &cs, r.ci.Engagement().CruiseEnabled, cycle.Seconds())
	out, sends := r.ci.Apply(target, &cs, nowNanos)

	for _, msg := range sends {
		w, ok := r.writers[msg.Bus]
		if !ok {
			continue
		}
		if err := w.WriteFrame(ctx, msg.Frame); err != nil {
			return errors.Wrapf(err, "transmit 0x%X on bus %d", msg.Frame.ID, msg.Bus)
		}
		r.sent++
		if r.log.Enabled(ctx, utils.LevelTrace) {
			utils.Trace(r.log, "TX", "bus", msg.Bus, "frame", msg.Frame.String())
		}
	}

	if frame%ExportStep == 0 {
		snap := export.Snapshot{
			Frame:         frame,
			MonoTimeNanos: nowNanos,
			CarState:      cs,
			Engagement:    r.ci.Engagement(),
			Actuators:     out,
			CancelLatched: r.ci.State.CancelLatched,
		}
		pubCtx, cancel := context.WithTimeout(ctx, export.PublishTimeout)
		if err := r.pub.Publish(pubCtx, snap); err != nil {
			r.log.Warn("export failed", "frame", frame, "error", err)
		}
		cancel()
	}

	if frame%DiagStep == 0 {
		diag := r.planner.Diagnostics()
		r.log.Debug("cycle",
			"frame", frame,
			"v_ego", cs.VEgo,
			"lane_assist", r.ci.Engagement().LaneAssistEnabled,
			"cruise", r.ci.Engagement().CruiseEnabled,
			"angle", out.SteeringAngleDeg,
			"accel", out.Accel,
			"speed_err", diag.Error,
		)
	}
	return nil
}

// receiveLoop feeds ch's stores until ctx is done or the reader is closed.
// Any other read error ends the loop and is returned.
func (r *Runner) receiveLoop(ctx context.Context, ch channel) error {
	r.log.Debug("RX loop started", "bus", ch.name)
	defer r.log.Debug("RX loop stopped", "bus", ch.name)

	for {
		frame, err := ch.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrapf(err, "%s bus", ch.name)
		}
		for _, s := range ch.stores {
			s.Update(frame)
		}
		if r.log.Enabled(ctx, utils.LevelTrace) {
			utils.Trace(r.log, "RX", "bus", ch.name, "frame", frame.String())
		}
	}
}
