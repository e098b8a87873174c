package codec

import (
	"fmt"

	openh264 "github.com/y9o/go-openh264"
)

// openH264Backend wraps Cisco's OpenH264 encoder via the y9o/go-openh264
// cgo binding.
type openH264Backend struct {
	enc           *openh264.Encoder
	width, height int
}

func newOpenH264Backend(width, height int) (backend, error) {
	enc, err := openh264.NewEncoder(openh264.EncoderOptions{
		Width:   width,
		Height:  height,
		Bitrate: defaultBitrateFor(width, height),
		FPS:     30,
	})
	if err != nil {
		return nil, fmt.Errorf("codec: openh264 encoder init: %w", err)
	}
	return &openH264Backend{enc: enc, width: width, height: height}, nil
}

func (b *openH264Backend) Encode(i420 []byte, width, height int, forceKeyframe bool) ([]byte, error) {
	if forceKeyframe {
		b.enc.ForceIntraFrame()
	}
	return b.enc.EncodeI420(i420)
}

func (b *openH264Backend) Close() error {
	if b.enc == nil {
		return nil
	}
	return b.enc.Close()
}

// defaultBitrateFor scales target bitrate with resolution, rather than
// using a single fixed value that would over- or under-shoot for very
// small or very large classroom displays.
func defaultBitrateFor(width, height int) int {
	pixels := width * height
	switch {
	case pixels <= 640*480:
		return 800_000
	case pixels <= 1280*720:
		return 2_000_000
	case pixels <= 1920*1080:
		return 4_000_000
	default:
		return 8_000_000
	}
}
