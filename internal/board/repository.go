package board

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"demandboard/internal/domain"
	"demandboard/internal/logger"
	demandsdk "demandboard/sdk/go"
)

// Store is the remote record store. *demandsdk.Client implements it.
type Store interface {
	ListDemands(ctx context.Context, opts demandsdk.ListOptions) ([]demandsdk.Demand, error)
	CreateDemand(ctx context.Context, in demandsdk.DemandInput) (demandsdk.Demand, error)
	UpdateDemand(ctx context.Context, id string, patch demandsdk.DemandPatch) (demandsdk.Demand, error)
	BulkDelete(ctx context.Context, ids []string) (demandsdk.BulkDeleteResult, error)
}

// Repository owns the canonical in-memory collection of demands.
//
// Loads are stamped when issued. A load commits only if it is still the
// latest one issued and no local mutation happened after it was issued.
// Categories of moves whose save is still outstanding are laid over any
// committed load.
type Repository struct {
	store Store
	rules domain.Rules
	log   *logger.Logger

	mu          sync.Mutex
	items       []domain.Demand
	loadSeq     uint64
	mutationSeq uint64
	moves       map[string]*pendingMove
}

// pendingMove is the latest optimistic category of a card and the number of
// its saves not yet settled.
type pendingMove struct {
	cat domain.Category
	n   int
}

func NewRepository(store Store, rules domain.Rules, log *logger.Logger) *Repository {
	return &Repository{
		store: store,
		rules: rules,
		log:   logger.OrNop(log),
		items: []domain.Demand{},
		moves: map[string]*pendingMove{},
	}
}

// Rules returns the validation rules applied before any write.
func (r *Repository) Rules() domain.Rules { return r.rules }

// LoadAll fetches every record, normalizes it and replaces the collection.
// On failure the previous collection is left untouched.
func (r *Repository) LoadAll(ctx context.Context) ([]domain.Demand, error) {
	r.mu.Lock()
	r.loadSeq++
	seq := r.loadSeq
	issuedAt := r.mutationSeq
	r.mu.Unlock()

	raws, err := r.store.ListDemands(ctx, demandsdk.ListOptions{})
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	items, err := normalizeAll(raws, r.log)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.loadSeq || issuedAt != r.mutationSeq {
		r.log.Debug("discarding superseded load", "load", seq, "latest", r.loadSeq)
		return nil, ErrSuperseded
	}
	for i := range items {
		if mv, ok := r.moves[items[i].ID]; ok {
			items[i].Category = mv.cat
		}
	}
	r.items = items
	return cloneAll(items), nil
}

// Create validates the draft locally, then stores it and appends the result.
func (r *Repository) Create(ctx context.Context, d domain.Draft) (domain.Demand, error) {
	d = cleanDraft(d)
	if problems := r.rules.ValidateDraft(d); len(problems) > 0 {
		return domain.Demand{}, &ValidationError{Problems: problems}
	}
	raw, err := r.store.CreateDemand(ctx, toInput(d))
	if err != nil {
		return domain.Demand{}, &PersistenceError{Op: "create", Err: err}
	}
	created, err := normalize(raw, r.log)
	if err != nil {
		return domain.Demand{}, &PersistenceError{Op: "create", Err: err}
	}
	r.mu.Lock()
	r.items = append(r.items, created)
	r.mutationSeq++
	r.mu.Unlock()
	return created.Clone(), nil
}

// Update sends only the fields present in p. It does not touch the local
// collection; callers decide whether the change was applied optimistically.
func (r *Repository) Update(ctx context.Context, id string, p domain.Patch) error {
	if p.Empty() {
		return nil
	}
	if problems := r.rules.ValidatePatch(p); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	if _, err := r.store.UpdateDemand(ctx, id, toWirePatch(p)); err != nil {
		return &PersistenceError{Op: "update", ID: id, Err: err}
	}
	return nil
}

// BulkDelete asks the store to delete exactly ids and returns its count.
func (r *Repository) BulkDelete(ctx context.Context, ids []string) (int, error) {
	ids = domain.CleanList(ids)
	if len(ids) == 0 {
		return 0, &ValidationError{Problems: []domain.Problem{{Field: "ids", Reason: "requires at least one entry"}}}
	}
	res, err := r.store.BulkDelete(ctx, ids)
	if err != nil {
		return 0, &PersistenceError{Op: "bulk-delete", ID: strings.Join(ids, ","), Err: err}
	}
	return res.Deleted, nil
}

// Snapshot returns a copy of the canonical collection.
func (r *Repository) Snapshot() []domain.Demand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.items)
}

func (r *Repository) Get(id string) (domain.Demand, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		return r.items[i].Clone(), true
	}
	return domain.Demand{}, false
}

func (r *Repository) indexOf(id string) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}

// setCategory writes cat and returns the previous value. Writing the value
// the card already holds is not a mutation.
func (r *Repository) setCategory(id string, cat domain.Category) (domain.Category, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return "", false
	}
	prev := r.items[i].Category
	if prev != cat {
		r.items[i].Category = cat
		r.mutationSeq++
	}
	return prev, true
}

// beginMove writes cat optimistically and keeps it pending until settleMove.
// It reports false as changed when the card already holds cat.
func (r *Repository) beginMove(id string, cat domain.Category) (prev domain.Category, changed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return "", false, false
	}
	prev = r.items[i].Category
	if prev == cat {
		return prev, false, true
	}
	r.items[i].Category = cat
	r.mutationSeq++
	mv := r.moves[id]
	if mv == nil {
		mv = &pendingMove{}
		r.moves[id] = mv
	}
	mv.cat = cat
	mv.n++
	return prev, true, true
}

// settleMove ends one pending save of id. A failed save puts prev back
// when no later move is pending and the card still holds target. Loads
// issued while the save was outstanding are superseded either way.
func (r *Repository) settleMove(id string, target, prev domain.Category, failed bool) (rolledBack bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutationSeq++
	if mv := r.moves[id]; mv != nil {
		mv.n--
		if mv.n <= 0 {
			delete(r.moves, id)
		}
	}
	if !failed {
		return false
	}
	if _, later := r.moves[id]; later {
		return false
	}
	i := r.indexOf(id)
	if i < 0 || r.items[i].Category != target {
		return false
	}
	r.items[i].Category = prev
	return true
}

// reorder rearranges the cards of cat in place: ids first, in that order,
// then the remaining cards of cat in their current order. Other categories
// keep their slots.
func (r *Repository) reorder(cat domain.Category, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var slots []int
	byID := map[string]domain.Demand{}
	for i, d := range r.items {
		if d.Category == cat {
			slots = append(slots, i)
			byID[d.ID] = d
		}
	}
	ordered := make([]domain.Demand, 0, len(slots))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %s is not in %s", ErrUnknownDemand, id, cat)
		}
		if used[id] {
			continue
		}
		used[id] = true
		ordered = append(ordered, d)
	}
	for _, i := range slots {
		if !used[r.items[i].ID] {
			ordered = append(ordered, r.items[i])
		}
	}
	for k, i := range slots {
		r.items[i] = ordered[k]
	}
	return nil
}

func (r *Repository) apply(id string, p domain.Patch) (domain.Demand, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return domain.Demand{}, false
	}
	r.items[i] = p.Apply(r.items[i])
	r.mutationSeq++
	return r.items[i].Clone(), true
}

func (r *Repository) remove(ids []string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0:0]
	for _, d := range r.items {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	removed := len(r.items) - len(kept)
	r.items = kept
	r.mutationSeq++
	return removed
}

func cleanDraft(d domain.Draft) domain.Draft {
	d.Description = strings.TrimSpace(d.Description)
	d.DeliveryDate = strings.TrimSpace(d.DeliveryDate)
	d.Subgroups = domain.CleanList(d.Subgroups)
	d.Responsibles = domain.CleanList(d.Responsibles)
	if d.Priority == "" {
		d.Priority = domain.PriorityMedium
	}
	if d.Category == "" {
		d.Category = domain.CategoryThisWeek
	}
	return d
}

func cloneAll(items []domain.Demand) []domain.Demand {
	out := make([]domain.Demand, len(items))
	for i, d := range items {
		out[i] = d.Clone()
	}
	return out
}
