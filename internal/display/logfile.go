// SPDX-License-Identifier: MIT

package display

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

type discard struct{ io.Writer }

func (discard) Close() error { return nil }

// OpenLog returns where log output goes while the watch screen owns the
// terminal. An empty path drops everything.
func OpenLog(path string) (io.WriteCloser, error) {
	if path == "" {
		return discard{io.Discard}, nil
	}
	f, err := tea.LogToFile(path, "asentry")
	if err != nil {
		return nil, fmt.Errorf("open watch log: %w", err)
	}
	return f, nil
}
