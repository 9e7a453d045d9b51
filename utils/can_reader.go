package utils

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

const rxBuffer = 256

type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// SocketCANReader pumps data frames from one interface into a buffered
// channel. Error frames are counted and dropped.
type SocketCANReader struct {
	iface  string
	conn   net.Conn
	frames chan can.Frame
	done   chan struct{}
	once   sync.Once

	err         error // set before frames is closed
	errorFrames atomic.Uint64
}

func NewSocketCANReader(ctx context.Context, iface string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrapf(err, "socketcan dial %s", iface)
	}

	r := &SocketCANReader{
		iface:  iface,
		conn:   conn,
		frames: make(chan can.Frame, rxBuffer),
		done:   make(chan struct{}),
	}
	go r.pump(socketcan.NewReceiver(conn))
	return r, nil
}

func (r *SocketCANReader) pump(recv *socketcan.Receiver) {
	defer close(r.frames)
	for recv.Receive() {
		if recv.HasErrorFrame() {
			r.errorFrames.Add(1)
			continue
		}
		select {
		case r.frames <- recv.Frame():
		case <-r.done:
			return
		}
	}
	select {
	case <-r.done:
	default:
		r.err = recv.Err()
	}
}

// ReadFrame blocks until a data frame arrives or ctx is done. After Close it
// returns net.ErrClosed.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f, ok := <-r.frames:
		if ok {
			return f, nil
		}
		if r.err != nil {
			return can.Frame{}, errors.Wrapf(r.err, "receive on %s", r.iface)
		}
		return can.Frame{}, net.ErrClosed
	}
}

// ErrorFrames returns how many bus error frames were dropped.
func (r *SocketCANReader) ErrorFrames() uint64 {
	return r.errorFrames.Load()
}

func (r *SocketCANReader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.conn.Close()
	})
	return err
}
