package utils

import (
	"sync"

	"go.einride.tech/can"
)

// SignalStore holds the latest physical value of every signal of the
// subscribed messages on one bus. Values start at 0 until the first frame.
type SignalStore struct {
	mu      sync.RWMutex
	cmap    *CANMap
	vl      map[string]map[string]float64
	updated map[string]uint64
}

func NewSignalStore(cmap *CANMap, messages []string) (*SignalStore, error) {
	s := &SignalStore{
		cmap:    cmap,
		vl:      make(map[string]map[string]float64, len(messages)),
		updated: make(map[string]uint64, len(messages)),
	}
	for _, name := range messages {
		fd, err := cmap.FrameByName(name)
		if err != nil {
			return nil, err
		}
		sigs := make(map[string]float64, len(fd.Signals))
		for _, sig := range fd.Signals {
			sigs[sig.Name] = 0
		}
		s.vl[name] = sigs
	}
	return s, nil
}

// Update decodes a received frame. Frames of unsubscribed messages are ignored.
func (s *SignalStore) Update(frame can.Frame) bool {
	fd, err := s.cmap.FrameByID(frame.ID)
	if err != nil {
		return false
	}
	s.mu.RLock()
	_, subscribed := s.vl[fd.Name]
	s.mu.RUnlock()
	if !subscribed {
		return false
	}

	values, err := s.cmap.DecodeFrame(frame)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.vl[fd.Name][k] = v
	}
	s.updated[fd.Name]++
	return true
}

// Snapshot copies the current values so a control cycle sees one consistent view.
func (s *SignalStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot(s.vl).Copy()
}

// Received returns how many frames of a message have been decoded.
func (s *SignalStore) Received(message string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated[message]
}

// Snapshot is a point-in-time copy of decoded values keyed by message then signal.
type Snapshot map[string]map[string]float64

func (s Snapshot) Value(message, signal string) float64 {
	return s[message][signal]
}

// Set is used to build snapshots by hand, mostly in tests.
func (s Snapshot) Set(message, signal string, v float64) Snapshot {
	sigs, ok := s[message]
	if !ok {
		sigs = map[string]float64{}
		s[message] = sigs
	}
	sigs[signal] = v
	return s
}

// Copy returns a deep copy of s.
func (s Snapshot) Copy() Snapshot {
	out := make(Snapshot, len(s))
	for msg, sigs := range s {
		cp := make(map[string]float64, len(sigs))
		for k, v := range sigs {
			cp[k] = v
		}
		out[msg] = cp
	}
	return out
}
