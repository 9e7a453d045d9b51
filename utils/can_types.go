package utils

import "sort"

type SignalDef struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	BigEndian bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Default   float64
	Unit      string
	Comment   string
}

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the definition of a signal in the frame.
func (fd *FrameDef) Signal(name string) (*SignalDef, bool) {
	for i := range fd.Signals {
		if fd.Signals[i].Name == name {
			return &fd.Signals[i], true
		}
	}
	return nil, false
}

// ValueTable maps a raw integer signal value to its symbolic name.
type ValueTable map[int64]string

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef

	// Values is keyed by frame name, then signal name.
	Values map[string]map[string]ValueTable
}

func NewCANMap() *CANMap {
	return &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
		Values: map[string]map[string]ValueTable{},
	}
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasSignal reports whether frame/signal is defined in the map.
func (m *CANMap) HasSignal(frame, signal string) bool {
	fd, ok := m.ByName[frame]
	if !ok {
		return false
	}
	_, ok = fd.Signal(signal)
	return ok
}

// ValueTable returns the value table of frame/signal, if any.
func (m *CANMap) ValueTable(frame, signal string) (ValueTable, bool) {
	sigs, ok := m.Values[frame]
	if !ok {
		return nil, false
	}
	vt, ok := sigs[signal]
	return vt, ok
}

func (m *CANMap) addValueTable(frame, signal string, vt ValueTable) {
	sigs, ok := m.Values[frame]
	if !ok {
		sigs = map[string]ValueTable{}
		m.Values[frame] = sigs
	}
	sigs[signal] = vt
}

func (m *CANMap) addFrame(fd *FrameDef) {
	m.ByID[fd.ID] = fd
	m.ByName[fd.Name] = fd
}

// Merge copies every frame and value table of other into m. Frames already
// present in m are kept.
func (m *CANMap) Merge(other *CANMap) {
	for name, fd := range other.ByName {
		if _, ok := m.ByName[name]; ok {
			continue
		}
		m.addFrame(fd)
	}
	for frame, sigs := range other.Values {
		for sig, vt := range sigs {
			if _, ok := m.ValueTable(frame, sig); !ok {
				m.addValueTable(frame, sig, vt)
			}
		}
	}
}
