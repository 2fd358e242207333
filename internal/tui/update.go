package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"demandboard/internal/board"
	"demandboard/internal/domain"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		// Only the latest reload clears the indicator.
		if msg.seq == m.loadSeq {
			m.loading = false
		}
		m.clampRows()
		return m, nil

	case movedMsg:
		m.clampRows()
		return m, nil

	case deletedMsg:
		m.clampRows()
		return m, nil

	case observationSavedMsg:
		return m, nil

	case noticeMsg:
		return m, m.showFlash(msg.notice.Message, msg.notice.Level == board.NoticeError)

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.present != nil {
			return m.updatePresentation(msg)
		}
		if m.grabbed {
			return m.updateGrabbed(msg)
		}
		if m.board.Mode() == board.ModeDeleteSelecting {
			return m.updateDeleteMode(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		m.moveColumn(-1)
	case "right", "l":
		m.moveColumn(1)
	case "up", "k":
		m.moveRow(-1)
	case "down", "j":
		m.moveRow(1)
	case "r":
		m.loading = true
		m.loadSeq++
		return m, m.reloadCmd(m.loadSeq)
	case " ", "space", "g":
		d, ok := m.current()
		if !ok {
			return m, nil
		}
		if _, err := m.drag.DragStart(d.ID); err != nil {
			return m, m.showFlash(err.Error(), true)
		}
		m.grabbed = true
		m.drag.DragOver(m.category())
	case "1", "2", "3":
		d, ok := m.current()
		if !ok {
			return m, nil
		}
		target := domain.Categories[int(msg.String()[0]-'1')]
		p, err := m.board.MoveCard(m.ctx, d.ID, target)
		if err != nil {
			return m, m.showFlash(err.Error(), true)
		}
		m.clampRows()
		return m, waitMoveCmd(d.ID, p)
	case "K", "J":
		col := m.board.Column(m.category())
		row := m.rows[m.col]
		to := row + 1
		if msg.String() == "K" {
			to = row - 1
		}
		if row >= len(col) || to < 0 || to >= len(col) {
			return m, nil
		}
		ids := make([]string, len(col))
		for i, d := range col {
			ids[i] = d.ID
		}
		ids[row], ids[to] = ids[to], ids[row]
		if err := m.board.Reorder(m.category(), ids); err != nil {
			return m, m.showFlash(err.Error(), true)
		}
		m.rows[m.col] = to
	case "d":
		m.board.EnterDeleteMode()
	case "p":
		m.filterPriority = cycle(m.filterPriority, len(domain.Priorities)+1)
		m.applyFilters()
	case "s":
		m.filterSubgroup = cycle(m.filterSubgroup, len(m.catalog.Subgroups)+1)
		m.applyFilters()
	case "a":
		m.filterResponsible = cycle(m.filterResponsible, len(m.responsibleOptions())+1)
		m.applyFilters()
	case "c":
		m.filterPriority, m.filterSubgroup, m.filterResponsible = 0, 0, 0
		m.board.ClearFilters()
		m.clampRows()
	case "P":
		seq, err := m.board.Present(m.category())
		if errors.Is(err, board.ErrEmptySequence) {
			return m, m.showFlash("Nenhuma demanda para apresentar", true)
		}
		if err != nil {
			return m, m.showFlash(err.Error(), true)
		}
		m.present = seq
		m.presentTitle = m.catalog.Title(m.category())
	case "enter":
		d, ok := m.current()
		if !ok {
			return m, nil
		}
		seq, err := m.board.PresentDemand(d.ID)
		if err != nil {
			return m, m.showFlash(err.Error(), true)
		}
		m.present = seq
		m.presentTitle = d.ID
	}
	return m, nil
}

func (m model) updateGrabbed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.moveColumn(-1)
		m.drag.DragLeave()
		m.drag.DragOver(m.category())
	case "right", "l":
		m.moveColumn(1)
		m.drag.DragLeave()
		m.drag.DragOver(m.category())
	case " ", "space", "g", "enter":
		id := m.drag.DraggingID()
		m.grabbed = false
		p, err := m.drag.Drop(m.ctx, m.category())
		if err != nil {
			return m, m.showFlash(err.Error(), true)
		}
		m.focus(id)
		return m, waitMoveCmd(id, p)
	case "esc":
		m.grabbed = false
		m.drag.DragEnd()
	}
	return m, nil
}

func (m model) updateDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.moveColumn(-1)
	case "right", "l":
		m.moveColumn(1)
	case "up", "k":
		m.moveRow(-1)
	case "down", "j":
		m.moveRow(1)
	case " ", "space", "x":
		d, ok := m.current()
		if !ok {
			return m, nil
		}
		if _, err := m.board.ToggleSelect(d.ID); err != nil {
			return m, m.showFlash(err.Error(), true)
		}
	case "enter":
		return m, m.confirmDeleteCmd()
	case "esc", "d":
		m.board.ExitDeleteMode()
	}
	return m, nil
}

func (m model) updatePresentation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	seq := m.present
	if seq.Editing() {
		switch msg.Type {
		case tea.KeyEsc:
			seq.Cancel()
		case tea.KeyEnter:
			return m, m.saveObservationCmd()
		case tea.KeyBackspace:
			r := []rune(seq.Draft())
			if len(r) > 0 {
				seq.SetDraft(string(r[:len(r)-1]))
			}
		case tea.KeySpace:
			seq.SetDraft(seq.Draft() + " ")
		case tea.KeyRunes:
			seq.SetDraft(seq.Draft() + string(msg.Runes))
		}
		return m, nil
	}
	switch msg.String() {
	case "left", "h":
		seq.Prev()
	case "right", "l":
		seq.Next()
	case "e":
		seq.BeginEdit()
	case "esc", "q":
		m.present = nil
		m.presentTitle = ""
		m.clampRows()
	}
	return m, nil
}

func (m *model) category() domain.Category {
	return domain.Categories[m.col]
}

func (m *model) current() (domain.Demand, bool) {
	col := m.board.Column(m.category())
	row := m.rows[m.col]
	if row < 0 || row >= len(col) {
		return domain.Demand{}, false
	}
	return col[row], true
}

func (m *model) moveColumn(delta int) {
	m.col += delta
	if m.col < 0 {
		m.col = 0
	}
	if m.col >= len(domain.Categories) {
		m.col = len(domain.Categories) - 1
	}
}

func (m *model) moveRow(delta int) {
	m.rows[m.col] += delta
	m.clampRows()
}

func (m *model) clampRows() {
	cols := m.board.Columns()
	for i, cat := range domain.Categories {
		n := len(cols[cat])
		if m.rows[i] >= n {
			m.rows[i] = n - 1
		}
		if m.rows[i] < 0 {
			m.rows[i] = 0
		}
	}
}

// focus puts the cursor on id wherever it lives now.
func (m *model) focus(id string) {
	for i, cat := range domain.Categories {
		for row, d := range m.board.Column(cat) {
			if d.ID == id {
				m.col = i
				m.rows[i] = row
				return
			}
		}
	}
	m.clampRows()
}

func (m *model) responsibleOptions() []string {
	if len(m.catalog.Responsibles) > 0 {
		return m.catalog.Responsibles
	}
	seen := map[string]bool{}
	var out []string
	for _, d := range m.board.Repository().Snapshot() {
		for _, r := range d.Responsibles {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func (m *model) applyFilters() {
	f := board.Filter{Priority: board.All, Subgroup: board.All, Responsible: board.All}
	if m.filterPriority > 0 {
		f.Priority = string(domain.Priorities[m.filterPriority-1])
	}
	if m.filterSubgroup > 0 && m.filterSubgroup <= len(m.catalog.Subgroups) {
		f.Subgroup = m.catalog.Subgroups[m.filterSubgroup-1]
	}
	if opts := m.responsibleOptions(); m.filterResponsible > 0 && m.filterResponsible <= len(opts) {
		f.Responsible = opts[m.filterResponsible-1]
	}
	m.board.SetFilter(f)
	m.clampRows()
}

func cycle(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (i + 1) % n
}

func filterLabel(v string) string {
	if v == "" || v == board.All {
		return "todas"
	}
	return fmt.Sprintf("%q", v)
}
