//go:build !linux

package keysource

import (
	"context"
	"errors"

	"github.com/bamsammich/shelfscan/internal/scan"
)

// Device is only available on Linux.
type Device struct {
	path string
	grab bool
}

func NewDevice(path string, grab bool) *Device {
	return &Device{path: path, grab: grab}
}

func (d *Device) Run(context.Context, chan<- scan.KeyEvent) error {
	return errors.New("input devices are only supported on linux")
}
