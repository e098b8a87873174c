//go:build linux

package inputinject

import (
	"fmt"
	"sync"

	"github.com/bendahl/uinput"

	"github.com/classroomlink/link/internal/proto"
)

// uinputBackend drives a paired virtual keyboard and mouse via the
// kernel's uinput subsystem. Requires access to /dev/uinput.
type uinputBackend struct {
	mu       sync.Mutex
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
	closed   bool
}

// NewUinputBackend creates the virtual devices under the given device
// names, visible to the OS as ordinary input hardware.
func NewUinputBackend(name string) (Backend, error) {
	keyboard, err := uinput.CreateKeyboard("/dev/uinput", []byte(name+"-keyboard"))
	if err != nil {
		return nil, fmt.Errorf("inputinject: create virtual keyboard: %w", err)
	}
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte(name+"-mouse"))
	if err != nil {
		keyboard.Close()
		return nil, fmt.Errorf("inputinject: create virtual mouse: %w", err)
	}
	return &uinputBackend{keyboard: keyboard, mouse: mouse}, nil
}

func (b *uinputBackend) MoveMouse(dx, dy int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.mouse.Move(dx, dy)
}

func (b *uinputBackend) ButtonDown(button proto.MouseEventType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	switch button {
	case proto.MouseClickRight:
		return b.mouse.RightPress()
	case proto.MouseClickMiddle:
		return b.mouse.MiddlePress()
	default:
		return b.mouse.LeftPress()
	}
}

func (b *uinputBackend) ButtonUp(button proto.MouseEventType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	switch button {
	case proto.MouseClickRight:
		return b.mouse.RightRelease()
	case proto.MouseClickMiddle:
		return b.mouse.MiddleRelease()
	default:
		return b.mouse.LeftRelease()
	}
}

func (b *uinputBackend) Click(button proto.MouseEventType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	switch button {
	case proto.MouseClickRight:
		return b.mouse.RightClick()
	case proto.MouseClickMiddle:
		return b.mouse.MiddleClick()
	default:
		return b.mouse.LeftClick()
	}
}

func (b *uinputBackend) Scroll(dx, dy int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if dy != 0 {
		if err := b.mouse.Wheel(false, dy); err != nil {
			return err
		}
	}
	if dx != 0 {
		return b.mouse.Wheel(true, dx)
	}
	return nil
}

func (b *uinputBackend) KeyDown(evdevCode int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.keyboard.KeyDown(evdevCode)
}

func (b *uinputBackend) KeyUp(evdevCode int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.keyboard.KeyUp(evdevCode)
}

func (b *uinputBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	kerr := b.keyboard.Close()
	merr := b.mouse.Close()
	if kerr != nil {
		return kerr
	}
	return merr
}
