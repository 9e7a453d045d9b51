package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"das-core/car"
)

// Snapshot is what the rest of the stack sees of one control cycle.
type Snapshot struct {
	Frame         uint64              `json:"frame"`
	MonoTimeNanos int64               `json:"mono_time"`
	CarState      car.VehicleState    `json:"car_state"`
	Engagement    car.EngagementState `json:"engagement"`
	Actuators     car.ActuatorTarget  `json:"actuators"`
	CancelLatched bool                `json:"cancel_latched"`
}

func (s Snapshot) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal snapshot")
	}
	return b, nil
}

// PublishTimeout bounds one Publish call so a stalled backend cannot hold up
// the control cycle.
const PublishTimeout = 5 * time.Millisecond

type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
	Close() error
}

// Multi fans a snapshot out to every publisher. A failing publisher does not
// stop the others; the first error is returned.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, s Snapshot) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
