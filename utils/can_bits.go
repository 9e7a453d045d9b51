package utils

import "go.einride.tech/can"

func getBits(data *can.Data, s *SignalDef) int64 {
	start, length := uint8(s.StartBit), uint8(s.BitLength)
	switch {
	case s.BigEndian && s.Signed:
		return data.SignedBitsBigEndian(start, length)
	case s.BigEndian:
		return int64(data.UnsignedBitsBigEndian(start, length))
	case s.Signed:
		return data.SignedBitsLittleEndian(start, length)
	default:
		return int64(data.UnsignedBitsLittleEndian(start, length))
	}
}

func setBits(data *can.Data, s *SignalDef, raw int64) {
	start, length := uint8(s.StartBit), uint8(s.BitLength)
	switch {
	case s.BigEndian && s.Signed:
		data.SetSignedBitsBigEndian(start, length, raw)
	case s.BigEndian:
		data.SetUnsignedBitsBigEndian(start, length, uint64(raw))
	case s.Signed:
		data.SetSignedBitsLittleEndian(start, length, raw)
	default:
		data.SetUnsignedBitsLittleEndian(start, length, uint64(raw))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampRaw(raw int64, bitLen int, signed bool) int64 {
	if bitLen <= 0 || bitLen > 63 {
		return raw
	}
	if !signed {
		max := int64((1 << bitLen) - 1)
		if raw < 0 {
			return 0
		}
		if raw > max {
			return max
		}
		return raw
	}
	min := -int64(1 << (bitLen - 1))
	max := int64((1 << (bitLen - 1)) - 1)
	if raw < min {
		return min
	}
	if raw > max {
		return max
	}
	return raw
}
