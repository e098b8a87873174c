package udpframe

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/classroomlink/link/internal/proto"
)

// frameChanCapacity is the bounded channel size fragments-turned-Frames
// are delivered on; when full, the oldest queued frame is dropped
// rather than blocking the socket read loop.
const frameChanCapacity = 16

// readTimeout bounds how long one receive blocks, so the stop flag
// (ctx.Done) is observed promptly.
const readTimeout = 100 * time.Millisecond

// Receiver owns an ephemeral UDP socket on the teacher side, reassembles
// incoming fragments, and delivers completed Frames on a bounded,
// never-blocking channel.
type Receiver struct {
	conn        *net.UDPConn
	reassembler *Reassembler
	frames      chan *proto.Frame
}

// NewReceiver binds an ephemeral UDP port for reception. The bound port
// is announced to the student via UdpOffer.
func NewReceiver() (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &Receiver{
		conn:        conn,
		reassembler: NewReassembler(),
		frames:      make(chan *proto.Frame, frameChanCapacity),
	}, nil
}

// Port returns the bound local UDP port.
func (r *Receiver) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Frames returns the channel completed Frames are delivered on.
func (r *Receiver) Frames() <-chan *proto.Frame {
	return r.frames
}

func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Run reads datagrams until ctx is done, reassembling and delivering
// completed frames. It returns nil on clean shutdown.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			log.Warn("udp read error", "error", err)
			continue
		}

		frame, err := r.reassembler.Ingest(buf[:n])
		if err != nil {
			log.Warn("fragment ingest error", "error", err)
			continue
		}
		if frame != nil {
			r.deliver(frame)
		}
	}
}

// deliver performs a non-blocking try-send; on channel-full it drops the
// oldest queued frame before inserting the new one, never blocking the
// receive loop.
func (r *Receiver) deliver(f *proto.Frame) {
	select {
	case r.frames <- f:
		return
	default:
	}

	select {
	case <-r.frames:
	default:
	}

	select {
	case r.frames <- f:
	default:
		log.Warn("frame channel still full after eviction, dropping frame")
	}
}
