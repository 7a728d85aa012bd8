package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// statePathOverride allows tests to redirect the state file.
var statePathOverride string //nolint:gochecknoglobals // test hook

// SetStatePathOverride sets a test override for the state path.
// Pass "" to restore the default. This is intended for tests only.
func SetStatePathOverride(path string) {
	statePathOverride = path
}

// State is what shelfscan remembers between sessions.
type State struct {
	LibraryID   int    `toml:"library_id,omitempty"`
	LibraryName string `toml:"library_name,omitempty"`
	Mode        string `toml:"mode,omitempty"`
}

// StatePath returns the path to the session state file under
// $XDG_STATE_HOME.
func StatePath() string {
	if statePathOverride != "" {
		return statePathOverride
	}
	return xdgPath("XDG_STATE_HOME", filepath.Join(".local", "state"), "state.toml")
}

// WriteState writes the session state file, creating the parent directory
// if needed.
func WriteState(s State) error {
	path := StatePath()
	if path == "" {
		return errors.New("no state directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadState reads the session state file. Returns os.ErrNotExist if the
// file does not exist.
func ReadState() (State, error) {
	path := StatePath()
	if path == "" {
		return State{}, os.ErrNotExist
	}

	var s State
	_, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, os.ErrNotExist
		}
		return State{}, err
	}
	return s, nil
}

// ClearState removes the session state file (best-effort).
func ClearState() {
	os.Remove(StatePath()) //nolint:errcheck // best-effort
}
