package ui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

var (
	sinkMu sync.Mutex
	sink   func(string)
)

// SetSink redirects all styled status lines to fn instead of stdout. The
// dashboard installs itself here while it owns the terminal; passing nil
// restores plain printing.
func SetSink(fn func(string)) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = fn
}

func emit(line string) {
	sinkMu.Lock()
	fn := sink
	sinkMu.Unlock()
	if fn != nil {
		fn(line)
		return
	}
	fmt.Println(line)
}

func Success(msg string) {
	emit(successStyle.Render("✔ ") + msg)
}

func Info(msg string) {
	emit(infoStyle.Render("→ ") + msg)
}

func Warn(msg string) {
	emit(warnStyle.Render("! ") + msg)
}

func Error(msg string) {
	emit(errorStyle.Render("✖ ") + msg)
}
