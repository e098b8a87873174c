package udpframe

import (
	"net"

	"github.com/classroomlink/link/internal/proto"
)

// Sender fragments and emits Frames over UDP from the student side.
// Sends are best-effort: individual datagram errors are logged and
// never retried; the receiver will simply skip the frame.
type Sender struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// NewSender opens an unconnected UDP socket used to send fragments to
// addr (the port offered by the teacher in UdpOffer).
func NewSender(addr *net.UDPAddr) (*Sender, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &Sender{conn: conn, addr: addr}, nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

// Probe sends a minimal datagram to addr to test reachability, as
// required before the student replies UdpReady.
func (s *Sender) Probe() error {
	_, err := s.conn.WriteToUDP([]byte{'S', 'L'}, s.addr)
	return err
}

// SendFrame fragments f and emits each datagram. It returns the first
// send error encountered, if any, but continues attempting subsequent
// fragments of the same frame; callers treat any error as "this frame
// may be incomplete on the wire" and do not retry.
func (s *Sender) SendFrame(frameID uint32, f proto.Frame) error {
	var firstErr error
	for _, datagram := range proto.FragmentFrame(frameID, f) {
		if _, err := s.conn.WriteToUDP(datagram, s.addr); err != nil {
			log.Warn("sendto failed", "frameId", frameID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
