package export

import (
	"context"

	"github.com/pfeiferj/gomsgq"
	"github.com/pkg/errors"
)

const DefaultSegmentSize = 10 * 1024 * 1024

// MsgqPublisher writes JSON snapshots to an openpilot msgq socket.
type MsgqPublisher struct {
	q   gomsgq.Msgq
	pub gomsgq.MsgqPublisher
}

func NewMsgqPublisher(name string) (*MsgqPublisher, error) {
	q := gomsgq.Msgq{}
	if err := q.Init(name, DefaultSegmentSize); err != nil {
		return nil, errors.Wrapf(err, "could not open msgq %s", name)
	}
	pub := gomsgq.MsgqPublisher{}
	pub.Init(q)
	return &MsgqPublisher{q: q, pub: pub}, nil
}

func (p *MsgqPublisher) Publish(ctx context.Context, s Snapshot) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}
	p.pub.Send(b)
	return nil
}

func (p *MsgqPublisher) Close() error {
	err, err2 := p.q.Close()
	if err != nil {
		return errors.Wrap(err, "could not close msgq")
	}
	if err2 != nil {
		return errors.Wrap(err2, "could not close msgq")
	}
	return nil
}
