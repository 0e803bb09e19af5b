package ui

import tea "github.com/charmbracelet/bubbletea"

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

func helpText(cancelling bool) string {
	if cancelling {
		return "stopping after the current frame..."
	}
	return "q / ctrl+c cancel"
}
