package proto

import (
	"encoding/binary"
	"fmt"
)

// FragmentHeaderSize is the size in bytes of the header prefixing every
// UDP fragment datagram.
const FragmentHeaderSize = 29

// MaxFragmentPayload is the largest number of post-header bytes one
// fragment may carry, chosen so a whole datagram (29-byte header plus
// payload) is at most 1400 bytes.
const MaxFragmentPayload = 1371

var fragmentMagic = [2]byte{'S', 'L'}

// FragmentHeader is the 29-byte fixed header on every UDP fragment:
// magic(2) + frameID(4) + fragmentIndex(2) + totalFragments(2) +
// flags(1) + timestamp(8) + width(4) + height(4) + avccLen(2), all
// integers little-endian.
type FragmentHeader struct {
	FrameID        uint32
	FragmentIndex  uint16
	TotalFragments uint16
	IsKeyframe     bool
	Timestamp      uint64
	Width          uint32
	Height         uint32
	AVCCLen        uint16
}

// Encode writes the header in its 29-byte wire form.
func (h FragmentHeader) Encode() []byte {
	buf := make([]byte, FragmentHeaderSize)
	buf[0] = fragmentMagic[0]
	buf[1] = fragmentMagic[1]
	binary.LittleEndian.PutUint32(buf[2:6], h.FrameID)
	binary.LittleEndian.PutUint16(buf[6:8], h.FragmentIndex)
	binary.LittleEndian.PutUint16(buf[8:10], h.TotalFragments)
	var flags byte
	if h.IsKeyframe {
		flags |= flagKeyframe
	}
	buf[10] = flags
	binary.LittleEndian.PutUint64(buf[11:19], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[19:23], h.Width)
	binary.LittleEndian.PutUint32(buf[23:27], h.Height)
	binary.LittleEndian.PutUint16(buf[27:29], h.AVCCLen)
	return buf
}

// DecodeFragmentHeader parses and validates the magic of a 29-byte
// fragment header.
func DecodeFragmentHeader(buf []byte) (FragmentHeader, error) {
	if len(buf) < FragmentHeaderSize {
		return FragmentHeader{}, fmt.Errorf("proto: fragment header too short: %d bytes", len(buf))
	}
	if buf[0] != fragmentMagic[0] || buf[1] != fragmentMagic[1] {
		return FragmentHeader{}, fmt.Errorf("proto: bad fragment magic %x%x", buf[0], buf[1])
	}
	return FragmentHeader{
		FrameID:        binary.LittleEndian.Uint32(buf[2:6]),
		FragmentIndex:  binary.LittleEndian.Uint16(buf[6:8]),
		TotalFragments: binary.LittleEndian.Uint16(buf[8:10]),
		IsKeyframe:     buf[10]&flagKeyframe != 0,
		Timestamp:      binary.LittleEndian.Uint64(buf[11:19]),
		Width:          binary.LittleEndian.Uint32(buf[19:23]),
		Height:         binary.LittleEndian.Uint32(buf[23:27]),
		AVCCLen:        binary.LittleEndian.Uint16(buf[27:29]),
	}, nil
}

// FragmentFrame splits a Frame's post-fixed-header payload (AVCC
// description, if any, followed by the Annex-B bitstream) into
// datagram-ready fragments carrying frameID. Each returned slice is a
// complete UDP datagram: 29-byte header then chunk.
func FragmentFrame(frameID uint32, f Frame) [][]byte {
	payload := make([]byte, 0, len(f.AVCC)+len(f.Payload))
	payload = append(payload, f.AVCC...)
	payload = append(payload, f.Payload...)

	total := (len(payload) + MaxFragmentPayload - 1) / MaxFragmentPayload
	if total == 0 {
		total = 1
	}

	datagrams := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxFragmentPayload
		end := start + MaxFragmentPayload
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[start:end]

		header := FragmentHeader{
			FrameID:        frameID,
			FragmentIndex:  uint16(i),
			TotalFragments: uint16(total),
			IsKeyframe:     f.IsKeyframe,
			Timestamp:      f.Timestamp,
			Width:          f.Width,
			Height:         f.Height,
			AVCCLen:        uint16(len(f.AVCC)),
		}

		datagram := make([]byte, 0, FragmentHeaderSize+len(chunk))
		datagram = append(datagram, header.Encode()...)
		datagram = append(datagram, chunk...)
		datagrams = append(datagrams, datagram)
	}
	return datagrams
}
