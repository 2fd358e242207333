package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"demandboard/internal/board"
	"demandboard/internal/domain"
)

func (m model) View() string {
	if m.present != nil {
		return m.viewPresentation()
	}
	var b strings.Builder
	title := m.title
	if title == "" {
		title = "Demandas"
	}
	b.WriteString(styleTitle().Render(title))
	if m.loading {
		b.WriteString(styleMuted().Render("  carregando…"))
	}
	b.WriteString("\n")
	f := m.board.Filter()
	b.WriteString(styleMuted().Render(fmt.Sprintf("prioridade: %s  subgrupo: %s  responsável: %s",
		filterLabel(f.Priority), filterLabel(f.Subgroup), filterLabel(f.Responsible))))
	b.WriteString("\n")
	b.WriteString(m.viewColumns())
	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m model) columnWidth() int {
	width := m.width
	if width <= 0 {
		width = 120
	}
	w := (width - 2*len(domain.Categories)) / len(domain.Categories)
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) viewColumns() string {
	colW := m.columnWidth()
	inner := colW - 4
	cols := m.board.Columns()
	hover := m.drag.HoverCategory()
	deleting := m.board.Mode() == board.ModeDeleteSelecting
	dragging := m.drag.DraggingID()

	rendered := make([]string, 0, len(domain.Categories))
	for i, cat := range domain.Categories {
		items := cols[cat]
		lines := []string{styleTitle().Render(truncate(fmt.Sprintf("%s (%d)", m.catalog.Title(cat), len(items)), inner))}
		if len(items) == 0 {
			lines = append(lines, styleMuted().Render("—"))
		}
		for row, d := range items {
			focused := i == m.col && row == m.rows[i] && !m.grabbed
			prefix := ""
			if deleting {
				if m.board.IsSelected(d.ID) {
					prefix = "[x] "
				} else {
					prefix = "[ ] "
				}
			}
			if d.ID == dragging {
				prefix = "» "
			}
			head := prefix + d.ID + " " + stylePriority(string(d.Priority)).Render(string(d.Priority))
			lines = append(lines, styleCard(focused).Render(head))
			lines = append(lines, styleCard(focused).Render(truncate(d.Description, inner)))
			meta := domain.JoinList(d.Subgroups)
			if d.DeliveryDate != "" {
				meta += " · " + d.DeliveryDate
			}
			lines = append(lines, styleMuted().Render(truncate(meta, inner)))
		}
		body := strings.Join(lines, "\n")
		rendered = append(rendered, styleColumn(cat == hover).Width(colW-2).Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) viewFooter() string {
	var help string
	switch {
	case m.grabbed:
		help = "←/→ escolher coluna · espaço soltar · esc cancelar"
	case m.board.Mode() == board.ModeDeleteSelecting:
		help = fmt.Sprintf("espaço marcar · enter excluir (%d) · esc sair", len(m.board.State().Selected))
	default:
		help = "setas navegar · espaço arrastar · 1/2/3 mover · J/K reordenar · d excluir · p/s/a filtros · c limpar · P apresentar · r recarregar · q sair"
	}
	out := styleMuted().Render(help)
	if m.flash != "" {
		out += "\n" + styleFlash(m.flashErr).Render(m.flash)
	}
	return out
}

func (m model) viewPresentation() string {
	seq := m.present
	d := seq.Current()
	var b strings.Builder
	b.WriteString(styleTitle().Render(m.presentTitle))
	b.WriteString("  ")
	b.WriteString(styleMuted().Render(seq.Position()))
	b.WriteString("\n\n")
	b.WriteString(styleTitle().Render(d.Description))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "ID: %s\n", d.ID)
	fmt.Fprintf(&b, "Prioridade: %s\n", stylePriority(string(d.Priority)).Render(string(d.Priority)))
	fmt.Fprintf(&b, "Subgrupos: %s\n", domain.JoinList(d.Subgroups))
	fmt.Fprintf(&b, "Responsáveis: %s\n", domain.JoinList(d.Responsibles))
	fmt.Fprintf(&b, "Entrega: %s\n", d.DeliveryDate)
	b.WriteString("\nObservação:\n")
	if seq.Editing() {
		b.WriteString(styleCard(true).Render(seq.Draft() + "▏"))
		b.WriteString("\n\n")
		b.WriteString(styleMuted().Render("enter salvar · esc cancelar"))
	} else {
		obs := d.Observation
		if obs == "" {
			obs = styleMuted().Render("(vazia)")
		}
		b.WriteString(obs)
		b.WriteString("\n\n")
		b.WriteString(styleMuted().Render("←/→ navegar · e editar observação · esc fechar"))
	}
	if m.flash != "" {
		b.WriteString("\n" + styleFlash(m.flashErr).Render(m.flash))
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
