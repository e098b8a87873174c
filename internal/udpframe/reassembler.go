// Package udpframe implements the UDP frame transport: the
// student-side sender that fragments encoded frames into datagrams,
// and the teacher-side receiver that reassembles them with
// watermark-based staleness discard.
package udpframe

import (
	"sync"

	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
)

var log = logging.L("udpframe")

// staleWindow is how far behind the watermark a frame-id may lag before
// its fragments are discarded outright.
const staleWindow = 5

// reapWindow is how far behind the watermark a slot may lag before it
// is reaped even if incomplete.
const reapWindow = 10

type slot struct {
	header    proto.FragmentHeader
	fragments map[uint16][]byte
	received  int
}

// Reassembler accumulates UDP fragments into complete Frames. Ingest
// and the accessors hold an internal mutex, so concurrent calls are
// safe; a single receiver goroutine is the usual caller.
type Reassembler struct {
	mu        sync.Mutex
	slots     map[uint32]*slot
	watermark int64 // -1 means no frame has completed yet
}

func NewReassembler() *Reassembler {
	return &Reassembler{
		slots:     make(map[uint32]*slot),
		watermark: -1,
	}
}

// Watermark returns the largest frame-id for which a Frame has been
// emitted, or -1 if none has yet.
func (r *Reassembler) Watermark() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watermark
}

// Ingest processes one raw UDP datagram. It returns a non-nil Frame
// exactly when this datagram completed a frame.
func (r *Reassembler) Ingest(datagram []byte) (*proto.Frame, error) {
	header, err := proto.DecodeFragmentHeader(datagram)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watermark >= 0 && int64(header.FrameID)+staleWindow <= r.watermark {
		return nil, nil
	}

	s, ok := r.slots[header.FrameID]
	if !ok {
		s = &slot{
			header:    header,
			fragments: make(map[uint16][]byte, header.TotalFragments),
		}
		r.slots[header.FrameID] = s
	}

	if _, exists := s.fragments[header.FragmentIndex]; !exists {
		chunk := datagram[proto.FragmentHeaderSize:]
		s.fragments[header.FragmentIndex] = append([]byte(nil), chunk...)
		s.received++
	}

	if s.received < int(s.header.TotalFragments) {
		return nil, nil
	}

	delete(r.slots, header.FrameID)

	payload := make([]byte, 0, int(s.header.TotalFragments)*proto.MaxFragmentPayload)
	for i := uint16(0); i < s.header.TotalFragments; i++ {
		payload = append(payload, s.fragments[i]...)
	}

	if int(s.header.AVCCLen) > len(payload) {
		return nil, nil
	}
	avcc := payload[:s.header.AVCCLen]
	body := payload[s.header.AVCCLen:]

	frame := &proto.Frame{
		IsKeyframe: s.header.IsKeyframe,
		Timestamp:  s.header.Timestamp,
		Width:      s.header.Width,
		Height:     s.header.Height,
		Codec:      proto.CodecH264,
		Transport:  proto.TransportUDP,
	}
	if len(avcc) > 0 {
		frame.AVCC = append([]byte(nil), avcc...)
	}
	if len(body) > 0 {
		frame.Payload = append([]byte(nil), body...)
	}

	if int64(header.FrameID) > r.watermark {
		r.watermark = int64(header.FrameID)
	}

	for id := range r.slots {
		if int64(id)+reapWindow <= r.watermark {
			delete(r.slots, id)
		}
	}

	return frame, nil
}

// PendingCount reports how many fragments have been received for
// frameID, for tests observing partial reassembly.
func (r *Reassembler) PendingCount(frameID uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[frameID]
	if !ok {
		return 0
	}
	return s.received
}
