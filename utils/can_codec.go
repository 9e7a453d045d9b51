package utils

import (
	"math"

	"github.com/pkg/errors"
	"go.einride.tech/can"
)

// EncodeFrame packs named physical values into a frame. Signals missing from
// values take their default; every value is clamped to the signal range.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return can.Frame{}, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return can.Frame{}, errors.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	var f can.Frame
	f.ID = fd.ID
	f.Length = uint8(fd.DLC)
	f.IsExtended = fd.ID > 0x7FF

	for i := range fd.Signals {
		s := &fd.Signals[i]
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		if s.Min < s.Max {
			v = clamp(v, s.Min, s.Max)
		}

		factor := s.Factor
		if factor == 0 {
			factor = 1
		}
		raw := int64(math.Round((v - s.Offset) / factor))
		raw = clampRaw(raw, s.BitLength, s.Signed)
		setBits(&f.Data, s, raw)
	}
	return f, nil
}

// DecodeFrame unpacks every signal of a known frame into physical values.
func (m *CANMap) DecodeFrame(frame can.Frame) (map[string]float64, error) {
	fd, err := m.FrameByID(frame.ID)
	if err != nil {
		return nil, err
	}
	if int(frame.Length) < fd.DLC {
		return nil, errors.Errorf("frame 0x%X expects DLC %d, got %d", frame.ID, fd.DLC, frame.Length)
	}

	out := make(map[string]float64, len(fd.Signals))
	for i := range fd.Signals {
		s := &fd.Signals[i]
		out[s.Name] = physical(s, getBits(&frame.Data, s))
	}
	return out, nil
}

func physical(s *SignalDef, raw int64) float64 {
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	return float64(raw)*factor + s.Offset
}
