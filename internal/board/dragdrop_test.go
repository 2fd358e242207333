package board

import (
	"context"
	"errors"
	"testing"

	"demandboard/internal/domain"
)

func TestDragDropMovesCard(t *testing.T) {
	b, store, _ := newTestBoard(t, wireDemand("DMD-0001", domain.CategoryThisWeek))
	dc := NewDragController(b)

	payload, err := dc.DragStart("DMD-0001")
	if err != nil {
		t.Fatalf("drag start: %v", err)
	}
	if payload.Source != domain.CategoryThisWeek || dc.DraggingID() != "DMD-0001" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	dc.DragOver(domain.CategoryStalled)
	if dc.HoverCategory() != domain.CategoryStalled {
		t.Fatalf("hover not tracked")
	}
	dc.DragLeave()
	if dc.HoverCategory() != "" || dc.DraggingID() != "DMD-0001" {
		t.Fatalf("drag leave should clear hover only")
	}
	dc.DragOver(domain.CategoryStalled)

	p, err := dc.Drop(context.Background(), domain.CategoryStalled)
	if err != nil || p == nil {
		t.Fatalf("drop: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("move: %v", err)
	}
	if dc.DraggingID() != "" || dc.HoverCategory() != "" {
		t.Fatalf("drop should clear drag state")
	}
	if got := category(t, b, "DMD-0001"); got != domain.CategoryStalled {
		t.Fatalf("expected stalled, got %s", got)
	}
	if len(store.updateCalls()) != 1 {
		t.Fatalf("expected one update")
	}
}

func TestDropOnSourceIsNoop(t *testing.T) {
	b, store, _ := newTestBoard(t, wireDemand("DMD-0001", domain.CategoryThisWeek))
	dc := NewDragController(b)
	if _, err := dc.DragStart("DMD-0001"); err != nil {
		t.Fatal(err)
	}
	p, err := dc.Drop(context.Background(), domain.CategoryThisWeek)
	if err != nil || p != nil {
		t.Fatalf("expected no move, got %v %v", p, err)
	}
	if len(store.updateCalls()) != 0 {
		t.Fatalf("no update expected")
	}
	if dc.DraggingID() != "" {
		t.Fatalf("drag state should be cleared")
	}
	if p, _ := dc.Drop(context.Background(), domain.CategoryStalled); p != nil {
		t.Fatalf("drop without drag must not move anything")
	}
}

func TestDragDisabledWhileSelecting(t *testing.T) {
	b, _, _ := newTestBoard(t, wireDemand("DMD-0001", domain.CategoryThisWeek))
	dc := NewDragController(b)
	b.EnterDeleteMode()
	if _, err := dc.DragStart("DMD-0001"); !errors.Is(err, ErrDragDisabled) {
		t.Fatalf("expected ErrDragDisabled, got %v", err)
	}
	b.ExitDeleteMode()
	if _, err := dc.DragStart("DMD-0001"); err != nil {
		t.Fatalf("drag start after exit: %v", err)
	}
	dc.DragEnd()
	if dc.DraggingID() != "" {
		t.Fatalf("drag end should clear dragging")
	}
}

func TestAutoScroll(t *testing.T) {
	b, _, _ := newTestBoard(t, wireDemand("DMD-0001", domain.CategoryThisWeek))
	dc := NewDragController(b)
	if v := dc.AutoScroll(0, 600); v != 0 {
		t.Fatalf("no scroll without a drag, got %v", v)
	}
	dc.DragStart("DMD-0001")
	cases := []struct {
		y    float64
		want float64
	}{
		{0, -ScrollMaxSpeed},
		{ScrollEdge / 2, -ScrollMaxSpeed / 2},
		{300, 0},
		{600 - ScrollEdge/2, ScrollMaxSpeed / 2},
		{600, ScrollMaxSpeed},
		{900, ScrollMaxSpeed},
	}
	for _, tc := range cases {
		if got := dc.AutoScroll(tc.y, 600); got != tc.want {
			t.Fatalf("y=%v: got %v want %v", tc.y, got, tc.want)
		}
	}
}
