package input

import (
	"io"

	"golang.org/x/term"
)

// Terminal is a terminal used for input. If `nil`, the controlling terminal
// is used.
var Terminal *term.Terminal

// ReadWriter combines reader and writer.
type ReadWriter struct {
	io.Reader
	io.Writer
}

// ReadSecret reads a secret (like a seed phrase) with prompt, the input is
// not echoed.
func ReadSecret(prompt string) (string, error) {
	if Terminal != nil {
		return Terminal.ReadPassword(prompt)
	}
	return readSecureSecret(prompt)
}
