// Package inputinject translates a teacher's Command mouse/keyboard
// events into synthetic input on the student machine.
// Coordinates arrive normalized (0..1) relative to the student's
// reported screen dimensions; Backend receives pixel deltas and named
// key codes only, so platform-specific injection stays isolated behind
// a narrow interface.
package inputinject

import (
	"fmt"
	"sync"

	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
)

var log = logging.L("inputinject")

// Backend performs the actual OS-level input synthesis. Mouse motion is
// relative (pixel deltas), matching what virtual input devices such as
// uinput expose; Handler tracks absolute position itself to convert the
// protocol's normalized coordinates into deltas.
type Backend interface {
	MoveMouse(dx, dy int32) error
	ButtonDown(button proto.MouseEventType) error
	ButtonUp(button proto.MouseEventType) error
	Click(button proto.MouseEventType) error
	Scroll(dx, dy int32) error
	KeyDown(evdevCode int) error
	KeyUp(evdevCode int) error
	Close() error
}

// Handler applies Commands against a Backend, owning the absolute
// cursor position and screen dimensions needed to turn normalized
// coordinates into pixel deltas.
type Handler struct {
	backend Backend

	mu           sync.Mutex
	screenW      int
	screenH      int
	lastX, lastY int
	havePosition bool
}

func NewHandler(backend Backend, screenW, screenH int) *Handler {
	return &Handler{backend: backend, screenW: screenW, screenH: screenH}
}

func (h *Handler) SetScreenDims(w, height int) {
	h.mu.Lock()
	h.screenW, h.screenH = w, height
	h.mu.Unlock()
}

// Apply dispatches one Command to the appropriate handler. Only
// MouseInput, MouseInputBatch and KeyboardInput carry injectable
// payloads; every other command type is a no-op here. Without a
// backend, Apply returns an error for every command.
func (h *Handler) Apply(cmd proto.Command) error {
	if h.backend == nil {
		return fmt.Errorf("inputinject: no backend available on this platform/session")
	}
	switch cmd.Type {
	case proto.CommandMouseInput:
		if cmd.Mouse == nil {
			return nil
		}
		return h.applyMouseEvent(*cmd.Mouse)
	case proto.CommandMouseInputBatch:
		for _, e := range cmd.MouseBatch {
			if err := h.applyMouseEvent(e); err != nil {
				return err
			}
		}
		return nil
	case proto.CommandKeyboardInput:
		if cmd.Key == nil {
			return nil
		}
		return h.applyKeyEvent(*cmd.Key)
	default:
		return nil
	}
}

func (h *Handler) applyMouseEvent(e proto.MouseEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e.Type {
	case proto.MouseMove:
		return h.moveLocked(e.X, e.Y)
	case proto.MouseClickLeft, proto.MouseClickRight, proto.MouseClickMiddle:
		if err := h.moveLocked(e.X, e.Y); err != nil {
			return err
		}
		return h.backend.Click(e.Type)
	case proto.MouseDown:
		if err := h.moveLocked(e.X, e.Y); err != nil {
			return err
		}
		return h.backend.ButtonDown(proto.MouseClickLeft)
	case proto.MouseUp:
		if err := h.moveLocked(e.X, e.Y); err != nil {
			return err
		}
		return h.backend.ButtonUp(proto.MouseClickLeft)
	case proto.MouseScroll:
		return h.backend.Scroll(int32(e.DX), int32(e.DY))
	default:
		return fmt.Errorf("inputinject: unknown mouse event type %q", e.Type)
	}
}

// moveLocked converts normalized coordinates to a pixel delta from the
// last known position and forwards it to the backend. Callers must hold
// h.mu.
func (h *Handler) moveLocked(xNorm, yNorm float64) error {
	if h.screenW <= 0 || h.screenH <= 0 {
		return nil
	}
	targetX := int(xNorm * float64(h.screenW))
	targetY := int(yNorm * float64(h.screenH))

	if !h.havePosition {
		h.lastX, h.lastY = targetX, targetY
		h.havePosition = true
		return nil
	}

	dx := targetX - h.lastX
	dy := targetY - h.lastY
	h.lastX, h.lastY = targetX, targetY
	if dx == 0 && dy == 0 {
		return nil
	}
	return h.backend.MoveMouse(int32(dx), int32(dy))
}

// applyKeyEvent presses modifiers in order, presses and releases the
// main key, then releases modifiers in reverse order, matching the
// standard chord convention.
func (h *Handler) applyKeyEvent(e proto.KeyEvent) error {
	if e.Text != "" {
		return h.typeText(e.Text)
	}

	code, ok := keyCode(e.Key)
	if !ok {
		return fmt.Errorf("inputinject: unknown key %q", e.Key)
	}

	var pressed []int
	for _, mod := range e.Modifiers {
		mcode, ok := keyCode(mod)
		if !ok {
			log.Warn("no mapping for modifier", "modifier", mod)
			continue
		}
		if err := h.backend.KeyDown(mcode); err != nil {
			return err
		}
		pressed = append(pressed, mcode)
	}

	downErr := h.backend.KeyDown(code)
	upErr := h.backend.KeyUp(code)

	for i := len(pressed) - 1; i >= 0; i-- {
		if err := h.backend.KeyUp(pressed[i]); err != nil {
			return err
		}
	}

	if downErr != nil {
		return downErr
	}
	return upErr
}

func (h *Handler) typeText(text string) error {
	for _, r := range text {
		code, ok := runeKeyCode(r)
		if !ok {
			log.Warn("no mapping for rune in typed text", "rune", string(r))
			continue
		}
		if err := h.backend.KeyDown(code); err != nil {
			return err
		}
		if err := h.backend.KeyUp(code); err != nil {
			return err
		}
	}
	return nil
}
