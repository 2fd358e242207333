package board

import (
	"context"
	"fmt"
	"sync"

	"demandboard/internal/domain"
)

// Sequencer pages through a sequence of demands fixed when it was opened.
// It also owns the inline observation editor of the current demand.
type Sequencer struct {
	repo *Repository

	mu      sync.Mutex
	items   []domain.Demand
	index   int
	editing bool
	draft   string
}

func newSequencer(repo *Repository, items []domain.Demand) *Sequencer {
	return &Sequencer{repo: repo, items: cloneAll(items)}
}

func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sequencer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Current returns the demand at the cursor, refreshed from the collection
// when it is still there.
func (s *Sequencer) Current() domain.Demand {
	s.mu.Lock()
	d := s.items[s.index]
	s.mu.Unlock()
	if live, ok := s.repo.Get(d.ID); ok {
		return live
	}
	return d.Clone()
}

// Position renders the 1-based cursor as "i / N".
func (s *Sequencer) Position() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d / %d", s.index+1, len(s.items))
}

func (s *Sequencer) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index < len(s.items)-1
}

func (s *Sequencer) HasPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index > 0
}

// Next advances, clamping at the last item. Any unsaved draft is dropped.
func (s *Sequencer) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	if s.index < len(s.items)-1 {
		s.index++
	}
}

// Prev steps back, clamping at the first item. Any unsaved draft is dropped.
func (s *Sequencer) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	if s.index > 0 {
		s.index--
	}
}

func (s *Sequencer) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

func (s *Sequencer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// BeginEdit seeds the draft from the current observation.
func (s *Sequencer) BeginEdit() {
	obs := s.Current().Observation
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = true
	s.draft = obs
}

func (s *Sequencer) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing {
		s.draft = text
	}
}

func (s *Sequencer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

func (s *Sequencer) discardLocked() {
	s.editing = false
	s.draft = ""
}

// Save persists the draft as the current demand's observation. The local
// record changes only after the store accepts it; on failure the draft and
// edit mode are kept.
func (s *Sequencer) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.editing {
		s.mu.Unlock()
		return nil
	}
	id := s.items[s.index].ID
	text := s.draft
	s.mu.Unlock()

	patch := domain.Patch{Observation: &text}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return err
	}
	s.repo.apply(id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Observation = text
		}
	}
	if s.items[s.index].ID == id {
		s.discardLocked()
	}
	return nil
}
