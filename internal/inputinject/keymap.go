package inputinject

import (
	"strings"
	"unicode"
)

// evdev key codes, matching Linux's linux/input-event-codes.h numbering.
const (
	evBackspace  = 14
	evTab        = 15
	evEnter      = 28
	evLeftShift  = 42
	evLeftCtrl   = 29
	evLeftAlt    = 56
	evCapsLock   = 58
	evEsc        = 1
	evSpace      = 57
	evPageUp     = 104
	evPageDown   = 109
	evEnd        = 107
	evHome       = 102
	evLeft       = 105
	evUp         = 103
	evRight      = 106
	evDown       = 108
	evInsert     = 110
	evDelete     = 111
	evLeftMeta   = 125
	evRightMeta  = 126
	evMinus      = 12
	evEqual      = 13
	evLeftBrace  = 26
	evRightBrace = 27
	evSemicolon  = 39
	evApostrophe = 40
	evGrave      = 41
	evBackslash  = 43
	evComma      = 51
	evDot        = 52
	evSlash      = 53
)

// namedKeys maps the protocol's named keys (letters, digits, and the
// control/navigation keys a remote-control UI exposes) to evdev
// keycodes. Keyed by raw key names, not Windows virtual-key codes —
// the protocol never carries those.
var namedKeys = map[string]int{
	"backspace": evBackspace,
	"tab":       evTab,
	"enter":     evEnter,
	"return":    evEnter,
	"shift":     evLeftShift,
	"ctrl":      evLeftCtrl,
	"control":   evLeftCtrl,
	"alt":       evLeftAlt,
	"capslock":  evCapsLock,
	"esc":       evEsc,
	"escape":    evEsc,
	"space":     evSpace,
	"pageup":    evPageUp,
	"pagedown":  evPageDown,
	"end":       evEnd,
	"home":      evHome,
	"left":      evLeft,
	"up":        evUp,
	"right":     evRight,
	"down":      evDown,
	"insert":    evInsert,
	"delete":    evDelete,
	"del":       evDelete,
	"meta":      evLeftMeta,
	"win":       evLeftMeta,
	"cmd":       evLeftMeta,
	"rmeta":     evRightMeta,

	"0": 11, "1": 2, "2": 3, "3": 4, "4": 5,
	"5": 6, "6": 7, "7": 8, "8": 9, "9": 10,

	"a": 30, "b": 48, "c": 46, "d": 32, "e": 18,
	"f": 33, "g": 34, "h": 35, "i": 23, "j": 36,
	"k": 37, "l": 38, "m": 50, "n": 49, "o": 24,
	"p": 25, "q": 16, "r": 19, "s": 31, "t": 20,
	"u": 22, "v": 47, "w": 17, "x": 45, "y": 21, "z": 44,

	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,

	"-":  evMinus,
	"=":  evEqual,
	"[":  evLeftBrace,
	"]":  evRightBrace,
	";":  evSemicolon,
	"'":  evApostrophe,
	"`":  evGrave,
	"\\": evBackslash,
	",":  evComma,
	".":  evDot,
	"/":  evSlash,
}

// keyCode resolves a protocol key name case-insensitively, since
// teachers send the display names ("Enter", "PageUp") the UI shows.
func keyCode(name string) (int, bool) {
	code, ok := namedKeys[strings.ToLower(name)]
	return code, ok
}

// runeKeyCode maps a single rune of typed text to an evdev keycode.
// Only the unshifted key is sent: an uppercase letter maps to its
// lowercase key, and typeText presses no shift modifier around it, so
// letters, digits, space and the unshifted punctuation in namedKeys are
// the runes that type as themselves.
func runeKeyCode(r rune) (int, bool) {
	lower := unicode.ToLower(r)
	if code, ok := namedKeys[string(lower)]; ok {
		return code, true
	}
	if r == ' ' {
		return evSpace, true
	}
	return 0, false
}
