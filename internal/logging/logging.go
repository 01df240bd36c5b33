// Package logging routes debug output to a file or discards it.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Setup configures the stdlib logger and the Bubble Tea logger.
// With an empty filename debug logging is discarded.
func Setup(filename string) (cleanup func(), err error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if filename == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	log.SetOutput(f)

	tf, err := tea.LogToFile(filename, "debug")
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open bubbletea log: %w", err)
	}

	return func() {
		_ = tf.Close()
		_ = f.Close()
	}, nil
}

// Debugf writes a debug line when logging is enabled.
func Debugf(format string, args ...any) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}
