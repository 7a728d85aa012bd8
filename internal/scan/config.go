package scan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultIdleTimeout is the maximum gap between two keystrokes of the same
// scan. Keyboard-emulating scanners emit a full code in a few milliseconds,
// while human typing rarely beats 100ms per key.
//
// Some deployments use 500ms for slow wireless scanners; set it through
// Config.IdleTimeout rather than changing this value.
const DefaultIdleTimeout = 100 * time.Millisecond

// DefaultTerminator is the key symbol that ends a scan.
const DefaultTerminator = KeyEnter

// KeyEnter is the normalized symbol for the Enter / carriage-return key.
// Key sources translate "\r", "\n" and their platform key names into it.
const KeyEnter = "Enter"

// KeyTab is the normalized symbol for the Tab key.
const KeyTab = "Tab"

// ErrUnknownTerminator is returned by ParseTerminator for names no key
// source emits.
var ErrUnknownTerminator = errors.New("unknown terminator key")

// ParseTerminator maps a user-supplied terminator name, in any case, to
// the symbol key sources emit: KeyEnter or KeyTab.
func ParseTerminator(name string) (string, error) {
	switch {
	case strings.EqualFold(name, KeyEnter):
		return KeyEnter, nil
	case strings.EqualFold(name, KeyTab):
		return KeyTab, nil
	default:
		return "", fmt.Errorf("%w %q (use %s or %s)", ErrUnknownTerminator, name, KeyEnter, KeyTab)
	}
}

// Config controls how a Capture classifies keystrokes.
type Config struct {
	// IdleTimeout is the deadline applied after each buffered keystroke.
	IdleTimeout time.Duration
	// Terminator ends a scan and submits the buffer.
	Terminator string
	// SuppressWhenFocused ignores every keystroke flagged Editable.
	SuppressWhenFocused bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:         DefaultIdleTimeout,
		Terminator:          DefaultTerminator,
		SuppressWhenFocused: true,
	}
}

// Validate reports whether the configuration can drive a Capture.
func (c Config) Validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.Terminator == "" {
		return errors.New("terminator key must not be empty")
	}
	return nil
}
