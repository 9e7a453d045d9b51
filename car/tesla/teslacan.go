package tesla

import (
	"github.com/pkg/errors"
	"go.einride.tech/can"

	"das-core/car"
	"das-core/utils"
)

// TeslaCAN builds the outbound command frames from the party and vehicle maps.
type TeslaCAN struct {
	party   *utils.CANMap
	vehicle *utils.CANMap
}

func NewTeslaCAN(party, vehicle *utils.CANMap) (*TeslaCAN, error) {
	for _, name := range []string{"DAS_steeringControl", "DAS_control"} {
		if _, err := party.FrameByName(name); err != nil {
			return nil, errors.Wrap(err, "command frame")
		}
	}
	if _, err := vehicle.FrameByName("SCCM_rightStalk"); err != nil {
		return nil, errors.Wrap(err, "command frame")
	}
	return &TeslaCAN{party: party, vehicle: vehicle}, nil
}

// checksum is the byte sum of the payload (without the checksum byte) plus
// both address bytes.
func checksum(data []byte, addr uint32) uint8 {
	sum := int(addr&0xFF) + int((addr>>8)&0xFF)
	for _, b := range data {
		sum += int(b)
	}
	return uint8(sum & 0xFF)
}

// withChecksum writes the checksum into the last byte of the frame.
func withChecksum(f can.Frame) can.Frame {
	n := int(f.Length)
	f.Data[n-1] = checksum(f.Data[:n-1], f.ID)
	return f
}

func (t *TeslaCAN) CreateSteeringControl(angle float64, enabled bool, counter int, controlType int) (car.CanMsg, error) {
	if !enabled {
		controlType = SteerControlNone
	}
	f, err := t.party.EncodeFrame("DAS_steeringControl", map[string]float64{
		"DAS_steeringAngleRequest":   angle,
		"DAS_steeringHapticRequest":  0,
		"DAS_steeringControlType":    float64(controlType),
		"DAS_steeringControlCounter": float64(counter),
	})
	if err != nil {
		return car.CanMsg{}, err
	}
	return car.CanMsg{Bus: BusParty, Frame: withChecksum(f)}, nil
}

// CreateLongitudinalCommand encodes DAS_control. speed is in m/s.
func (t *TeslaCAN) CreateLongitudinalCommand(accState int, speed, minAccel, maxAccel float64, counter int) (car.CanMsg, error) {
	f, err := t.party.EncodeFrame("DAS_control", map[string]float64{
		"DAS_setSpeed":       speed * MS_TO_KPH,
		"DAS_accState":       float64(accState),
		"DAS_aebEvent":       0,
		"DAS_jerkMin":        JerkLimitMin,
		"DAS_jerkMax":        JerkLimitMax,
		"DAS_accelMin":       minAccel,
		"DAS_accelMax":       maxAccel,
		"DAS_controlCounter": float64(counter),
	})
	if err != nil {
		return car.CanMsg{}, err
	}
	return car.CanMsg{Bus: BusParty, Frame: withChecksum(f)}, nil
}

// CreateCancelCommand is a DAS_control that silently cancels the autopilot's
// cruise.
func (t *TeslaCAN) CreateCancelCommand(counter int) (car.CanMsg, error) {
	return t.CreateLongitudinalCommand(AccStateCancelSilent, 0, 0, 0, counter)
}

// RightStalkPress fakes a right stalk position on the vehicle bus.
func (t *TeslaCAN) RightStalkPress(counter int, position int) (car.CanMsg, error) {
	f, err := t.vehicle.EncodeFrame("SCCM_rightStalk", map[string]float64{
		"SCCM_rightStalkCrc":       0,
		"SCCM_rightStalkCounter":   float64(counter),
		"SCCM_rightStalkStatus":    float64(position),
		"SCCM_rightStalkReserved1": 0,
		"SCCM_parkButtonStatus":    0,
		"SCCM_rightStalkReserved2": 0,
	})
	if err != nil {
		return car.CanMsg{}, err
	}
	n := int(f.Length)
	f.Data[0] = crc8J1850(f.Data[1:n])
	return car.CanMsg{Bus: BusVehicle, Frame: f}, nil
}

var crc8Table = func() [256]uint8 {
	const poly = 0x1D
	var table [256]uint8
	for i := 0; i < 256; i++ {
		crc := uint8(i)
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// crc8J1850 is CRC-8/SAE-J1850: poly 0x1D, init 0xFF, xorout 0xFF.
func crc8J1850(data []byte) uint8 {
	crc := uint8(0xFF)
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc ^ 0xFF
}
