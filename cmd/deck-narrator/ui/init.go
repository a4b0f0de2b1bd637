// Package ui provides terminal output helpers for the deck-narrator CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
	verbose bool
)

// InitUI applies the color and verbosity settings.
func InitUI(noColor, verboseOutput bool) {
	verbose = verboseOutput
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verbose
}

// SetOutput redirects standard and error output.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
	color.Output = out
	color.Error = errOut
}
