package tui

import tea "github.com/charmbracelet/bubbletea"

// Page is a top-level screen in the console.
type Page interface {
	ID() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
}

var _ Page = (*ConsoleModel)(nil)
