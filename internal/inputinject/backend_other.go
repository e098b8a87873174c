//go:build !linux

package inputinject

import "fmt"

// NewUinputBackend is only available on Linux; this platform needs its
// own native backend, left as an integration point for a GUI-shell
// collaborator rather than something this module implements.
func NewUinputBackend(name string) (Backend, error) {
	return nil, fmt.Errorf("inputinject: no input backend implemented for this platform")
}
