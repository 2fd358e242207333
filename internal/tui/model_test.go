package tui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"demandboard/internal/board"
	"demandboard/internal/domain"
	demandsdk "demandboard/sdk/go"
)

type memStore struct {
	mu      sync.Mutex
	records []demandsdk.Demand
	deleted []string
}

func (s *memStore) ListDemands(context.Context, demandsdk.ListOptions) ([]demandsdk.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]demandsdk.Demand(nil), s.records...), nil
}

func (s *memStore) CreateDemand(context.Context, demandsdk.DemandInput) (demandsdk.Demand, error) {
	panic("not used")
}

func (s *memStore) UpdateDemand(_ context.Context, id string, p demandsdk.DemandPatch) (demandsdk.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			if p.Category != nil {
				s.records[i].Category = *p.Category
			}
			if p.Observation != nil {
				s.records[i].Observation = *p.Observation
			}
			return s.records[i], nil
		}
	}
	return demandsdk.Demand{}, nil
}

func (s *memStore) BulkDelete(_ context.Context, ids []string) (demandsdk.BulkDeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []demandsdk.Demand
	for _, r := range s.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	n := len(s.records) - len(kept)
	s.records = kept
	s.deleted = append(s.deleted, ids...)
	return demandsdk.BulkDeleteResult{Deleted: n}, nil
}

func record(id, cat string) demandsdk.Demand {
	sg, _ := json.Marshal([]string{"BI Analytics"})
	return demandsdk.Demand{
		ID:           id,
		Description:  "card " + id,
		Priority:     "high",
		Subgroup:     sg,
		Responsible:  json.RawMessage(`"Ana"`),
		DeliveryDate: "10/03/2026",
		Category:     cat,
	}
}

func newTestModel(t *testing.T, records ...demandsdk.Demand) (model, *memStore) {
	t.Helper()
	store := &memStore{records: records}
	repo := board.NewRepository(store, domain.Rules{}, nil)
	b := board.New(repo, board.Options{Notifier: board.NotifierFunc(func(board.Notice) {})})
	catalog := domain.Catalog{
		Subgroups: []string{"BI Analytics", "Help Desk"},
		CategoryTitles: map[domain.Category]string{
			domain.CategoryLastWeek: "Semana Passada",
			domain.CategoryThisWeek: "Semana Atual",
			domain.CategoryStalled:  "Parados",
		},
	}
	m := newModel(context.Background(), b, catalog, "Board")
	m = drain(t, m, m.Init())
	return m, store
}

// drain runs cmd and feeds its message back, the way the program loop would.
func drain(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if msg == nil {
		return m
	}
	if _, ok := msg.(flashDoneMsg); ok {
		return m
	}
	next, _ := m.Update(msg)
	return next.(model)
}

func press(t *testing.T, m model, key string) model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return drain(t, next.(model), cmd)
}

func TestKeyboardDragMovesCard(t *testing.T) {
	m, store := newTestModel(t, record("DMD-0001", "this_week"))
	m = press(t, m, "space")
	if !m.grabbed || m.drag.DraggingID() != "DMD-0001" {
		t.Fatalf("expected card grabbed")
	}
	m = press(t, m, "right")
	if m.drag.HoverCategory() != domain.CategoryStalled {
		t.Fatalf("hover should follow the column, got %s", m.drag.HoverCategory())
	}
	m = press(t, m, "space")
	if m.grabbed || m.drag.DraggingID() != "" {
		t.Fatalf("drop should end the grab")
	}
	if store.records[0].Category != "stalled" {
		t.Fatalf("store not updated: %s", store.records[0].Category)
	}
	if d, ok := m.current(); !ok || d.ID != "DMD-0001" {
		t.Fatalf("cursor should follow the moved card")
	}
}

func TestMoveToKey(t *testing.T) {
	m, store := newTestModel(t, record("DMD-0001", "this_week"))
	m = press(t, m, "1")
	if store.records[0].Category != "last_week" {
		t.Fatalf("expected last_week, got %s", store.records[0].Category)
	}
	if len(m.board.Column(domain.CategoryLastWeek)) != 1 {
		t.Fatalf("board column not updated")
	}
}

func TestDeleteModeKeys(t *testing.T) {
	m, store := newTestModel(t, record("DMD-0001", "this_week"), record("DMD-0002", "this_week"))
	m = press(t, m, "d")
	if m.board.Mode() != board.ModeDeleteSelecting {
		t.Fatalf("expected delete mode")
	}
	m = press(t, m, "space")
	m = press(t, m, "space")
	m = press(t, m, "down")
	m = press(t, m, "x")
	if !strings.Contains(m.View(), "[x] DMD-0002") {
		t.Fatalf("selection not rendered:\n%s", m.View())
	}
	m = press(t, m, "enter")
	if len(store.deleted) != 1 || store.deleted[0] != "DMD-0002" {
		t.Fatalf("unexpected deletes %v", store.deleted)
	}
	if m.board.Mode() != board.ModeNormal {
		t.Fatalf("expected normal mode after delete")
	}
}

func TestPresentationKeys(t *testing.T) {
	m, store := newTestModel(t, record("DMD-0001", "stalled"), record("DMD-0002", "stalled"))
	m = press(t, m, "right")
	m = press(t, m, "P")
	if m.present == nil {
		t.Fatalf("expected presentation to open")
	}
	if !strings.Contains(m.View(), "1 / 2") {
		t.Fatalf("position missing:\n%s", m.View())
	}
	m = press(t, m, "right")
	m = press(t, m, "right")
	if m.present.Index() != 1 {
		t.Fatalf("expected clamp at last item")
	}
	m = press(t, m, "e")
	m = press(t, m, "ok")
	m = press(t, m, "space")
	m = press(t, m, "!")
	m = press(t, m, "enter")
	if store.records[1].Observation != "ok !" {
		t.Fatalf("observation not saved: %q", store.records[1].Observation)
	}
	m = press(t, m, "esc")
	if m.present != nil {
		t.Fatalf("esc should close the presentation")
	}
}

func TestPresentEmptyColumnFlashes(t *testing.T) {
	m, _ := newTestModel(t, record("DMD-0001", "this_week"))
	m = press(t, m, "left")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("P")})
	m = next.(model)
	if m.present != nil || m.flash == "" {
		t.Fatalf("empty column must not open a presentation")
	}
}

func TestFilterCycling(t *testing.T) {
	m, _ := newTestModel(t, record("DMD-0001", "this_week"))
	m = press(t, m, "s")
	if m.board.Filter().Subgroup != "BI Analytics" {
		t.Fatalf("unexpected subgroup filter %q", m.board.Filter().Subgroup)
	}
	m = press(t, m, "s")
	if len(m.board.Column(domain.CategoryThisWeek)) != 0 {
		t.Fatalf("Help Desk filter should hide the card")
	}
	m = press(t, m, "c")
	if m.board.Filter().Active() {
		t.Fatalf("c should clear filters")
	}
	if !strings.Contains(m.View(), "Semana Atual (1)") {
		t.Fatalf("column header missing:\n%s", m.View())
	}
}

func TestReorderKeys(t *testing.T) {
	m, _ := newTestModel(t, record("DMD-0001", "this_week"), record("DMD-0002", "this_week"))
	m = press(t, m, "J")
	col := m.board.Column(domain.CategoryThisWeek)
	if col[0].ID != "DMD-0002" || col[1].ID != "DMD-0001" {
		t.Fatalf("J should move the card down, got %s %s", col[0].ID, col[1].ID)
	}
	if d, ok := m.current(); !ok || d.ID != "DMD-0001" {
		t.Fatalf("cursor should follow the reordered card")
	}
	m = press(t, m, "J")
	if m.rows[m.col] != 1 {
		t.Fatalf("J on the last card should do nothing")
	}
	m = press(t, m, "K")
	if col := m.board.Column(domain.CategoryThisWeek); col[0].ID != "DMD-0001" {
		t.Fatalf("K should move the card back up")
	}
}
