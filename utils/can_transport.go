package utils

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// SocketCANWriter transmits on one interface. Writes are serialised so a
// frame is never interleaved with another on the socket.
type SocketCANWriter struct {
	iface string

	mu   sync.Mutex
	conn net.Conn
	tx   *socketcan.Transmitter
	sent uint64
}

func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrapf(err, "socketcan dial %s", iface)
	}
	return &SocketCANWriter{
		iface: iface,
		conn:  conn,
		tx:    socketcan.NewTransmitter(conn),
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	if err := frame.Validate(); err != nil {
		return errors.Wrapf(err, "invalid frame 0x%X", frame.ID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.tx.TransmitFrame(ctx, frame); err != nil {
		return errors.Wrapf(err, "transmit on %s", w.iface)
	}
	w.sent++
	return nil
}

// Sent returns how many frames were transmitted.
func (w *SocketCANWriter) Sent() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}

func (w *SocketCANWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
