//go:build !windows

package input

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// readSecureSecret reads the user's secret with prompt directly from /dev/tty.
func readSecureSecret(prompt string) (string, error) {
	f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return "", err
	}
	defer f.Close()
	_, err = f.WriteString(prompt)
	if err != nil {
		return "", err
	}
	secret, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	_, err = f.WriteString("\n")
	return strings.TrimRight(string(secret), "\r\n"), err
}
