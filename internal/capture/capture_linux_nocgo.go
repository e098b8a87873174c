//go:build linux && !cgo

package capture

// newPlatformCapturer returns an error on Linux built without cgo,
// since screen capture requires linking against X11 via cgo.
func newPlatformCapturer(cfg Config) (Capturer, error) {
	return nil, ErrNotSupported
}
