package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"demandboard/internal/board"
	"demandboard/internal/domain"
	"demandboard/internal/logger"
)

// Run opens the interactive board until the user quits.
func Run(ctx context.Context, repo *board.Repository, catalog domain.Catalog, title string, log *logger.Logger) error {
	notifier := &programNotifier{}
	b := board.New(repo, board.Options{Logger: log, Notifier: notifier})
	m := newModel(ctx, b, catalog, title)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	notifier.attach(p)
	_, err := p.Run()
	return err
}
