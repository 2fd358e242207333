package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"demandboard/internal/board"
	"demandboard/internal/domain"
)

type loadedMsg struct {
	seq int
	err error
}

type movedMsg struct {
	id  string
	err error
}

type deletedMsg struct {
	n   int
	err error
}

type observationSavedMsg struct{ err error }

type noticeMsg struct{ notice board.Notice }

type flashDoneMsg struct{ seq int }

// model is the bubbletea model of the board screen.
type model struct {
	ctx     context.Context
	board   *board.Board
	drag    *board.DragController
	catalog domain.Catalog
	title   string

	width, height int

	col  int
	rows [3]int

	// grabbed is a keyboard drag in progress.
	grabbed bool

	present      *board.Sequencer
	presentTitle string

	filterPriority    int
	filterSubgroup    int
	filterResponsible int

	loading bool
	loadSeq int

	flash    string
	flashErr bool
	flashSeq int
}

func newModel(ctx context.Context, b *board.Board, catalog domain.Catalog, title string) model {
	return model{
		ctx:     ctx,
		board:   b,
		drag:    board.NewDragController(b),
		catalog: catalog,
		title:   title,
		col:     1,
	}
}

func (m model) Init() tea.Cmd {
	return m.reloadCmd(0)
}

func (m model) reloadCmd(seq int) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		return loadedMsg{seq: seq, err: b.Reload(ctx)}
	}
}

func waitMoveCmd(id string, p *board.Pending) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		return movedMsg{id: id, err: p.Wait()}
	}
}

func (m model) confirmDeleteCmd() tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		n, err := b.ConfirmDelete(ctx)
		return deletedMsg{n: n, err: err}
	}
}

func (m model) saveObservationCmd() tea.Cmd {
	seq, ctx := m.present, m.ctx
	return func() tea.Msg {
		return observationSavedMsg{err: seq.Save(ctx)}
	}
}

func (m *model) showFlash(text string, isErr bool) tea.Cmd {
	m.flash = text
	m.flashErr = isErr
	m.flashSeq++
	seq := m.flashSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

// programNotifier forwards board notices into a running program.
type programNotifier struct {
	mu sync.Mutex
	p  *tea.Program
}

func (n *programNotifier) attach(p *tea.Program) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.p = p
}

func (n *programNotifier) Notify(notice board.Notice) {
	n.mu.Lock()
	p := n.p
	n.mu.Unlock()
	if p != nil {
		go p.Send(noticeMsg{notice: notice})
	}
}
