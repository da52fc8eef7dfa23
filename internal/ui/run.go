package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fableweaver/fableweaver/internal/prefetch"
	"github.com/fableweaver/fableweaver/internal/session"
	"github.com/fableweaver/fableweaver/internal/util"
)

// Run boots the TUI program and blocks until it exits.
func Run(ctx context.Context, st *session.Store, pre *prefetch.Pregenerator, cfg util.Config, version string) error {
	m := initialModel(ctx, st, pre, cfg, version)
	program := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
