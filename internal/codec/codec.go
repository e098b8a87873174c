// Package codec implements the RGBA→YUV420→H.264 encode pipeline that
// turns the student's captured screen into wire-ready Frames: BT.601
// fixed-point color conversion to planar I420, OpenH264 encoding behind
// a narrow backend interface, and SPS/PPS extraction into an AVCC
// configuration record for decoders that want out-of-band parameter
// sets.
package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
)

var log = logging.L("codec")

// KeyframeInterval is how often (in encoded frames) an IDR is forced
// automatically, in addition to frame 0 and any explicit
// RequestKeyframe. One IDR per second at the 30fps capture rate.
const KeyframeInterval = 30

var (
	ErrEncoderNotInitialized = errors.New("codec: encoder not initialized")
)

// backend is the narrow interface a concrete H.264 implementation must
// satisfy. One software path only: no quality presets, no GPU texture
// pipeline, no multi-codec switch.
type backend interface {
	// Encode compresses one planar I420 frame (w*h + w*h/4 + w*h/4
	// bytes) and returns the Annex-B bitstream. forceKeyframe requests
	// the output be an IDR.
	Encode(i420 []byte, width, height int, forceKeyframe bool) ([]byte, error)
	Close() error
}

type backendFactory func(width, height int) (backend, error)

// newBackend is a package variable so tests can substitute a fake
// encoder without linking go-openh264.
var newBackend backendFactory = newOpenH264Backend

// Encoder owns the lifecycle of a single H.264 backend instance,
// rebuilding it whenever the effective (even-rounded) frame dimensions
// change. Encode is single-writer; callers do not
// need to serialize calls themselves, though the capture loop never
// calls it concurrently in practice (one capture/encode goroutine per
// session).
type Encoder struct {
	mu sync.Mutex

	width, height int // even-rounded dimensions the backend is built for
	backend       backend

	frameIndex    uint64
	forceKeyframe bool
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Close releases the backend, if any.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	return err
}

// ForceKeyframe requests the next Encode call emit an IDR, regardless
// of the periodic schedule. Used when a peer sends RequestKeyframe.
func (e *Encoder) ForceKeyframe() {
	e.mu.Lock()
	e.forceKeyframe = true
	e.mu.Unlock()
}

// Encode converts one captured RGBA buffer to a wire Frame. rowStride
// is the buffer's stride in bytes per row, which may exceed
// reportedWidth*4 when the capture backend pads rows; the effective
// row count is derived from the buffer length, then both dimensions
// are rounded down to the nearest even integer for 4:2:0 subsampling.
func (e *Encoder) Encode(rgba []byte, reportedWidth, reportedHeight int, rowStride int, timestampMs uint64) (proto.Frame, error) {
	if reportedWidth <= 0 || len(rgba) == 0 {
		return proto.Frame{}, fmt.Errorf("codec: empty capture buffer")
	}
	if rowStride <= 0 {
		rowStride = reportedWidth * 4
	}

	actualRows := len(rgba) / rowStride
	height := reportedHeight
	if actualRows > 0 && actualRows < height {
		height = actualRows
	}
	width := reportedWidth

	evenW := width &^ 1
	evenH := height &^ 1
	if evenW == 0 || evenH == 0 {
		return proto.Frame{}, fmt.Errorf("codec: dimensions too small after even-rounding: %dx%d", evenW, evenH)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend == nil || evenW != e.width || evenH != e.height {
		if e.backend != nil {
			e.backend.Close()
		}
		b, err := newBackend(evenW, evenH)
		if err != nil {
			return proto.Frame{}, fmt.Errorf("codec: rebuild encoder %dx%d: %w", evenW, evenH, err)
		}
		e.backend = b
		e.width, e.height = evenW, evenH
		e.frameIndex = 0
		log.Info("encoder rebuilt", "width", evenW, "height", evenH)
	}

	i420, err := rgbaToI420(rgba, evenW, evenH, rowStride)
	if err != nil {
		return proto.Frame{}, err
	}

	forceKF := e.frameIndex == 0 || e.frameIndex%KeyframeInterval == 0 || e.forceKeyframe
	e.forceKeyframe = false

	annexB, err := e.backend.Encode(i420, evenW, evenH, forceKF)
	if err != nil {
		// Drop the frame, ask for a keyframe next so the stream recovers.
		e.forceKeyframe = true
		return proto.Frame{}, fmt.Errorf("codec: encode: %w", err)
	}
	e.frameIndex++

	isKeyframe := containsIDR(annexB)
	frame := proto.Frame{
		IsKeyframe: isKeyframe,
		Timestamp:  timestampMs,
		Width:      uint32(evenW),
		Height:     uint32(evenH),
		Payload:    annexB,
		Codec:      proto.CodecH264,
	}
	if isKeyframe {
		avcc, err := buildAVCC(annexB)
		if err != nil {
			log.Warn("avcc extraction failed on keyframe", "error", err)
		} else {
			frame.AVCC = avcc
		}
	}
	return frame, nil
}
