// Package capture provides the screen capture collaborator behind the
// video pipeline: grab the current screen contents as RGBA pixels plus
// their reported dimensions. A single full-frame RGBA grab with no
// region capture, no GPU texture hand-off, and no cursor overlay —
// the input plane applies events against the same coordinate space
// instead of compositing a cursor into the stream.
package capture

import "fmt"

// Frame is one captured screenshot: RGBA pixel data, the reported
// dimensions, and the buffer's row stride in bytes (which may exceed
// width*4 when the platform backend pads rows).
type Frame struct {
	RGBA   []byte
	Width  int
	Height int
	Stride int
}

// Capturer is the narrow interface the capture loop depends on.
type Capturer interface {
	// CaptureFrame grabs the current screen contents.
	CaptureFrame() (Frame, error)
	// Bounds reports the current screen dimensions without capturing.
	Bounds() (width, height int, err error)
	Close() error
}

// Config selects which display to capture. A classroom machine always
// streams its primary display (DisplayIndex 0); the field is carried
// because some student hardware is multi-headed.
type Config struct {
	DisplayIndex int
}

func DefaultConfig() Config {
	return Config{DisplayIndex: 0}
}

// ErrNotSupported is returned by platforms without a capture backend
// wired in this build (e.g. Linux built without cgo).
var ErrNotSupported = fmt.Errorf("capture: screen capture not supported on this platform/build")

// New creates a platform-specific Capturer.
func New(cfg Config) (Capturer, error) {
	return newPlatformCapturer(cfg)
}
