package utils

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"go.einride.tech/can/pkg/dbc"
)

func LoadDBC(path string) (*CANMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read dbc file")
	}
	return ParseDBC(path, data)
}

// ParseDBC builds a signal map from DBC source. Message transmitters become
// the frame direction and VAL_ entries become value tables.
func ParseDBC(name string, data []byte) (*CANMap, error) {
	p := dbc.NewParser(name, data)
	if err := p.Parse(); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", name)
	}

	m := NewCANMap()
	var values []*dbc.ValueDescriptionsDef
	for _, def := range p.Defs() {
		switch d := def.(type) {
		case *dbc.MessageDef:
			if d.Size == 0 || d.Size > 8 {
				return nil, errors.Errorf("frame %s: unsupported size %d", d.Name, d.Size)
			}
			fd := &FrameDef{
				ID:        uint32(d.MessageID) & 0x1FFFFFFF,
				Name:      string(d.Name),
				DLC:       int(d.Size),
				Direction: string(d.Transmitter),
			}
			for _, s := range d.Signals {
				fd.Signals = append(fd.Signals, SignalDef{
					Name:      string(s.Name),
					StartBit:  int(s.StartBit),
					BitLength: int(s.Size),
					Signed:    s.IsSigned,
					BigEndian: s.IsBigEndian,
					Factor:    s.Factor,
					Offset:    s.Offset,
					Min:       s.Minimum,
					Max:       s.Maximum,
					Unit:      s.Unit,
				})
			}
			sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
			m.addFrame(fd)
		case *dbc.ValueDescriptionsDef:
			values = append(values, d)
		}
	}

	// VAL_ may precede or follow its BO_, so resolve them once all frames are known.
	for _, v := range values {
		fd, ok := m.ByID[uint32(v.MessageID)&0x1FFFFFFF]
		if !ok {
			continue
		}
		vt := ValueTable{}
		for _, vd := range v.ValueDescriptions {
			vt[int64(vd.Value)] = vd.Description
		}
		m.addValueTable(fd.Name, string(v.SignalName), vt)
	}
	return m, nil
}
