package tesla

import (
	_ "embed"

	"github.com/pkg/errors"

	"das-core/utils"
)

//go:embed dbc/tesla_model3_party.dbc
var partyDBC []byte

//go:embed dbc/tesla_model3_vehicle.dbc
var vehicleDBC []byte

// LoadCANMaps parses the built-in party and vehicle tables.
func LoadCANMaps() (party, vehicle *utils.CANMap, err error) {
	party, err = utils.ParseDBC("tesla_model3_party.dbc", partyDBC)
	if err != nil {
		return nil, nil, errors.Wrap(err, "party dbc")
	}
	vehicle, err = utils.ParseDBC("tesla_model3_vehicle.dbc", vehicleDBC)
	if err != nil {
		return nil, nil, errors.Wrap(err, "vehicle dbc")
	}
	return party, vehicle, nil
}

func validateSignals(m *utils.CANMap, refs []signalRef) error {
	for _, r := range refs {
		if !m.HasSignal(r.Message, r.Signal) {
			return errors.Errorf("required signal %s.%s missing from signal map", r.Message, r.Signal)
		}
	}
	return nil
}

func validateButtons(m *utils.CANMap, buttons []Button) error {
	for _, b := range buttons {
		refs := []signalRef{{b.Message, b.Signal}}
		if b.MuxSignal != "" {
			refs = append(refs, signalRef{b.Message, b.MuxSignal})
		}
		if err := validateSignals(m, refs); err != nil {
			return errors.Wrapf(err, "button %s", b.Type)
		}
	}
	return nil
}
