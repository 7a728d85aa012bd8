package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(&buf)

	_, err := w.Write([]byte("cooked\n"))
	require.NoError(t, err)

	w.SetRaw(true)
	n, err := w.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n, "reports the caller's byte count")

	_, err = w.Write([]byte("no newline"))
	require.NoError(t, err)

	w.SetRaw(false)
	_, err = w.Write([]byte("\n"))
	require.NoError(t, err)

	assert.Equal(t, "cooked\na\r\nb\r\nno newline\n", buf.String())
}

func TestTerminalCanTUI(t *testing.T) {
	assert.True(t, Terminal{Stdin: true, Stderr: true}.CanTUI())
	assert.False(t, Terminal{Stdin: true}.CanTUI())
	assert.False(t, Terminal{Stderr: true}.CanTUI())
}
