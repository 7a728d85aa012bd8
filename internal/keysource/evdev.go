package keysource

import (
	"encoding/binary"
	"time"

	"github.com/bamsammich/shelfscan/internal/scan"
)

// Linux input_event on 64-bit platforms: struct timeval (16 bytes),
// type u16, code u16, value s32.
const inputEventSize = 24

const (
	evKey = 0x01

	keyReleased = 0
	keyPressed  = 1
	keyRepeated = 2

	keyLeftShift  = 42
	keyRightShift = 54
)

type inputEvent struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

func decodeInputEvent(b []byte) inputEvent {
	sec := int64(binary.NativeEndian.Uint64(b[0:8]))
	usec := int64(binary.NativeEndian.Uint64(b[8:16]))
	return inputEvent{
		Time:  time.Unix(sec, usec*int64(time.Microsecond)),
		Type:  binary.NativeEndian.Uint16(b[16:18]),
		Code:  binary.NativeEndian.Uint16(b[18:20]),
		Value: int32(binary.NativeEndian.Uint32(b[20:24])),
	}
}

// keyPair is the text a key produces without and with shift.
type keyPair struct{ plain, shifted string }

// usLayout maps evdev key codes to a US keyboard layout. Scanners in
// keyboard-wedge mode almost always emulate this layout.
var usLayout = map[uint16]keyPair{
	2: {"1", "!"}, 3: {"2", "@"}, 4: {"3", "#"}, 5: {"4", "$"}, 6: {"5", "%"},
	7: {"6", "^"}, 8: {"7", "&"}, 9: {"8", "*"}, 10: {"9", "("}, 11: {"0", ")"},
	12: {"-", "_"}, 13: {"=", "+"},
	14: {KeyBackspace, KeyBackspace},
	15: {KeyTab, KeyTab},
	16: {"q", "Q"}, 17: {"w", "W"}, 18: {"e", "E"}, 19: {"r", "R"}, 20: {"t", "T"},
	21: {"y", "Y"}, 22: {"u", "U"}, 23: {"i", "I"}, 24: {"o", "O"}, 25: {"p", "P"},
	26: {"[", "{"}, 27: {"]", "}"},
	28: {scan.KeyEnter, scan.KeyEnter},
	30: {"a", "A"}, 31: {"s", "S"}, 32: {"d", "D"}, 33: {"f", "F"}, 34: {"g", "G"},
	35: {"h", "H"}, 36: {"j", "J"}, 37: {"k", "K"}, 38: {"l", "L"},
	39: {";", ":"}, 40: {"'", "\""}, 41: {"`", "~"}, 43: {"\\", "|"},
	44: {"z", "Z"}, 45: {"x", "X"}, 46: {"c", "C"}, 47: {"v", "V"}, 48: {"b", "B"},
	49: {"n", "N"}, 50: {"m", "M"},
	51: {",", "<"}, 52: {".", ">"}, 53: {"/", "?"},
	55: {"*", "*"},
	57: {" ", " "},
	71: {"7", "7"}, 72: {"8", "8"}, 73: {"9", "9"}, 74: {"-", "-"},
	75: {"4", "4"}, 76: {"5", "5"}, 77: {"6", "6"}, 78: {"+", "+"},
	79: {"1", "1"}, 80: {"2", "2"}, 81: {"3", "3"}, 82: {"0", "0"}, 83: {".", "."},
	96: {scan.KeyEnter, scan.KeyEnter},
	98: {"/", "/"},
}

// keyTranslator turns EV_KEY events into key names, tracking shift.
type keyTranslator struct {
	leftShift, rightShift bool
}

// translate returns the key for a press. Releases, autorepeat, modifiers
// and unmapped codes yield ok == false.
func (k *keyTranslator) translate(ev inputEvent) (string, bool) {
	if ev.Type != evKey {
		return "", false
	}
	switch ev.Code {
	case keyLeftShift:
		k.leftShift = ev.Value != keyReleased
		return "", false
	case keyRightShift:
		k.rightShift = ev.Value != keyReleased
		return "", false
	}
	if ev.Value != keyPressed {
		return "", false
	}
	pair, ok := usLayout[ev.Code]
	if !ok {
		return "", false
	}
	if k.leftShift || k.rightShift {
		return pair.shifted, true
	}
	return pair.plain, true
}
