package board

import (
	"context"
	"errors"
	"testing"

	"demandboard/internal/domain"
)

func TestSequencerBounds(t *testing.T) {
	b, _, _ := newTestBoard(t,
		wireDemand("DMD-0001", domain.CategoryStalled),
		wireDemand("DMD-0002", domain.CategoryStalled),
		wireDemand("DMD-0003", domain.CategoryStalled),
	)
	seq, err := b.Present(domain.CategoryStalled)
	if err != nil {
		t.Fatal(err)
	}
	seq.Prev()
	if seq.Index() != 0 || seq.HasPrev() {
		t.Fatalf("prev at start must clamp at 0")
	}
	for i := 0; i < 5; i++ {
		seq.Next()
	}
	if seq.Index() != 2 || seq.HasNext() {
		t.Fatalf("next must clamp at N-1, got %d", seq.Index())
	}
	if seq.Position() != "3 / 3" {
		t.Fatalf("unexpected position %q", seq.Position())
	}
	if seq.Current().ID != "DMD-0003" {
		t.Fatalf("unexpected current %s", seq.Current().ID)
	}
}

func TestSequencerKeepsSnapshotOrder(t *testing.T) {
	b, _, _ := newTestBoard(t,
		wireDemand("DMD-0001", domain.CategoryStalled),
		wireDemand("DMD-0002", domain.CategoryStalled),
	)
	seq, _ := b.Present(domain.CategoryStalled)
	p, _ := b.MoveCard(context.Background(), "DMD-0001", domain.CategoryThisWeek)
	p.Wait()
	if seq.Len() != 2 || seq.Current().ID != "DMD-0001" {
		t.Fatalf("sequence must stay fixed after open")
	}
}

func TestObservationEditIsolation(t *testing.T) {
	b, store, _ := newTestBoard(t,
		wireDemand("DMD-0001", domain.CategoryStalled),
		wireDemand("DMD-0002", domain.CategoryStalled),
	)
	seq, _ := b.Present(domain.CategoryStalled)

	seq.BeginEdit()
	seq.SetDraft("unsaved note")
	seq.Next()
	if seq.Editing() || seq.Draft() != "" {
		t.Fatalf("navigation should discard the draft")
	}
	if d, _ := b.Repository().Get("DMD-0001"); d.Observation != "" {
		t.Fatalf("discarded draft leaked into the record: %q", d.Observation)
	}

	seq.BeginEdit()
	seq.SetDraft("cancel me")
	seq.Cancel()
	if len(store.updateCalls()) != 0 {
		t.Fatalf("no update expected before save")
	}

	store.updateErrs = []error{errStoreDown}
	seq.BeginEdit()
	seq.SetDraft("waiting on data team")
	err := seq.Save(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !seq.Editing() || seq.Draft() != "waiting on data team" {
		t.Fatalf("failed save must keep the draft")
	}
	if d, _ := b.Repository().Get("DMD-0002"); d.Observation != "" {
		t.Fatalf("failed save changed the record")
	}

	if err := seq.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if seq.Editing() {
		t.Fatalf("save should leave edit mode")
	}
	if seq.Current().Observation != "waiting on data team" {
		t.Fatalf("current should reflect saved observation")
	}
	if d, _ := b.Repository().Get("DMD-0002"); d.Observation != "waiting on data team" {
		t.Fatalf("record not updated: %q", d.Observation)
	}
	calls := store.updateCalls()
	last := calls[len(calls)-1]
	if last.ID != "DMD-0002" || last.Patch.Observation == nil || last.Patch.Category != nil {
		t.Fatalf("save should patch the observation only: %+v", last)
	}
}
