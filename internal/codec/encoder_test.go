package codec

import (
	"testing"
)

// fakeBackend stands in for openH264Backend so Encoder tests don't
// need the cgo binding; it records the dimensions and keyframe flag it
// was built/called with and returns a minimal Annex-B bitstream.
type fakeBackend struct {
	width, height int
	closed        bool
	calls         int
}

func newFakeBackend(width, height int) (backend, error) {
	return &fakeBackend{width: width, height: height}, nil
}

func (f *fakeBackend) Encode(i420 []byte, width, height int, forceKeyframe bool) ([]byte, error) {
	f.calls++
	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	if forceKeyframe {
		out := append([]byte{0, 0, 0, 1}, sps...)
		out = append(out, 0, 0, 0, 1)
		out = append(out, pps...)
		out = append(out, 0, 0, 0, 1, 0x65, 0xaa) // IDR slice
		return out, nil
	}
	return []byte{0, 0, 0, 1, 0x41, 0xbb}, nil // non-IDR slice
}

func (f *fakeBackend) Close() error { f.closed = true; return nil }

func withFakeBackend(t *testing.T) {
	t.Helper()
	orig := newBackend
	newBackend = newFakeBackend
	t.Cleanup(func() { newBackend = orig })
}

func makeRGBA(w, h int) []byte {
	buf := make([]byte, w*h*4)
	for i := range buf {
		buf[i] = byte(i)
	}
	return buf
}

func TestEncoder_FirstFrameIsKeyframeWithAVCC(t *testing.T) {
	withFakeBackend(t)
	e := NewEncoder()
	defer e.Close()

	frame, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, 1000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !frame.IsKeyframe {
		t.Error("frame 0 must be a keyframe")
	}
	if len(frame.AVCC) == 0 {
		t.Error("keyframe must carry a non-empty AVCC description")
	}
}

func TestEncoder_DeltaFrameHasNoAVCC(t *testing.T) {
	withFakeBackend(t)
	e := NewEncoder()
	defer e.Close()

	if _, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, 33)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if frame.IsKeyframe {
		t.Fatal("second frame should not be a keyframe")
	}
	if len(frame.AVCC) != 0 {
		t.Error("delta frame must not carry an AVCC description")
	}
}

func TestEncoder_PeriodicKeyframe(t *testing.T) {
	withFakeBackend(t)
	e := NewEncoder()
	defer e.Close()

	var keyframeIndices []int
	for i := 0; i < KeyframeInterval+1; i++ {
		frame, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, uint64(i))
		if err != nil {
			t.Fatalf("Encode frame %d: %v", i, err)
		}
		if frame.IsKeyframe {
			keyframeIndices = append(keyframeIndices, i)
		}
	}
	if len(keyframeIndices) != 2 || keyframeIndices[0] != 0 || keyframeIndices[1] != KeyframeInterval {
		t.Fatalf("expected keyframes at 0 and %d, got %v", KeyframeInterval, keyframeIndices)
	}
}

func TestEncoder_ForceKeyframe(t *testing.T) {
	withFakeBackend(t)
	e := NewEncoder()
	defer e.Close()

	if _, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	e.ForceKeyframe()
	frame, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, 33)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !frame.IsKeyframe {
		t.Fatal("expected forced keyframe")
	}
}

func TestEncoder_RebuildsOnDimensionChange(t *testing.T) {
	withFakeBackend(t)
	e := NewEncoder()
	defer e.Close()

	if _, err := e.Encode(makeRGBA(4, 4), 4, 4, 4*4, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	first := e.backend.(*fakeBackend)

	frame, err := e.Encode(makeRGBA(8, 8), 8, 8, 8*4, 33)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !first.closed {
		t.Error("old backend should be closed on dimension change")
	}
	if !frame.IsKeyframe {
		t.Error("frame counter should reset to 0 on rebuild, forcing a keyframe")
	}
	second := e.backend.(*fakeBackend)
	if second.width != 8 || second.height != 8 {
		t.Errorf("new backend built for %dx%d, want 8x8", second.width, second.height)
	}
}

func TestEncoder_OddDimensionsRoundedDown(t *testing.T) {
	withFakeBackend(t)
	e := NewEncoder()
	defer e.Close()

	frame, err := e.Encode(makeRGBA(5, 5), 5, 5, 5*4, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if frame.Width != 4 || frame.Height != 4 {
		t.Errorf("expected rounded-down 4x4, got %dx%d", frame.Width, frame.Height)
	}
}
