//go:build linux

package keysource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/shelfscan/internal/scan"
)

// EVIOCGRAB is _IOW('E', 0x90, int).
const eviocgrab = 0x40044590

// Device reads key presses from a Linux input device such as
// /dev/input/event3. Events keep the kernel timestamp.
type Device struct {
	path string
	grab bool
}

// NewDevice creates a Device source. With grab set the device is opened
// exclusively, so scanned codes stop reaching other programs.
func NewDevice(path string, grab bool) *Device {
	return &Device{path: path, grab: grab}
}

func (d *Device) Run(ctx context.Context, out chan<- scan.KeyEvent) error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open input device: %w", err)
	}
	defer f.Close()

	if d.grab {
		if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, 1); err != nil {
			return fmt.Errorf("grab %s: %w", d.path, err)
		}
		//nolint:errcheck // released on close anyway
		defer unix.IoctlSetInt(int(f.Fd()), eviocgrab, 0)
	}

	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()

	var (
		buf [inputEventSize * 64]byte
		tr  keyTranslator
	)
	for {
		n, err := f.Read(buf[:])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", d.path, err)
		}
		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			ev := decodeInputEvent(buf[off : off+inputEventSize])
			key, ok := tr.translate(ev)
			if !ok {
				continue
			}
			if err := send(ctx, out, scan.KeyEvent{Key: key, Time: ev.Time}); err != nil {
				return err
			}
		}
	}
}
