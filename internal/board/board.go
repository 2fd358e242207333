package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"demandboard/internal/domain"
	"demandboard/internal/logger"
)

type Mode int

const (
	ModeNormal Mode = iota
	ModeDeleteSelecting
)

func (m Mode) String() string {
	if m == ModeDeleteSelecting {
		return "delete-selecting"
	}
	return "normal"
}

type NoticeLevel int

const (
	NoticeSuccess NoticeLevel = iota
	NoticeError
)

// Notice is a user-facing message about the outcome of an action.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Form is the create/edit dialog state. EditingID is empty when creating.
type Form struct {
	Open      bool
	EditingID string
	Draft     domain.Draft
}

// State is a point-in-time copy of the board's interaction state.
type State struct {
	Mode     Mode
	Selected []string
	Form     Form
	Filter   Filter
}

type Options struct {
	Logger   *logger.Logger
	Notifier Notifier
}

// Board is the interaction state machine over a Repository.
type Board struct {
	repo     *Repository
	log      *logger.Logger
	notifier Notifier

	mu       sync.Mutex
	mode     Mode
	selected map[string]bool
	form     Form
	filter   Filter
	inflight map[string]chan struct{}
}

func New(repo *Repository, opts Options) *Board {
	log := logger.OrNop(opts.Logger)
	notifier := opts.Notifier
	if notifier == nil {
		notifier = logNotifier{log: log}
	}
	return &Board{
		repo:     repo,
		log:      log,
		notifier: notifier,
		selected: map[string]bool{},
		inflight: map[string]chan struct{}{},
	}
}

type logNotifier struct{ log *logger.Logger }

func (n logNotifier) Notify(notice Notice) {
	if notice.Level == NoticeError {
		n.log.Error(notice.Message, "error", notice.Err)
		return
	}
	n.log.Info(notice.Message)
}

func (b *Board) Repository() *Repository { return b.repo }

func (b *Board) notifyErr(msg string, err error) {
	b.notifier.Notify(Notice{Level: NoticeError, Message: msg, Err: err})
}

func (b *Board) notifyOK(msg string) {
	b.notifier.Notify(Notice{Level: NoticeSuccess, Message: msg})
}

// Pending tracks a background write started by MoveCard.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending { return &Pending{done: make(chan struct{})} }

func settled(err error) *Pending {
	p := newPending()
	p.finish(err)
	return p
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the write settles and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}

// Err returns the write's error once settled, nil before that.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Reload fetches the record set. A superseded load is not an error.
func (b *Board) Reload(ctx context.Context) error {
	_, err := b.repo.LoadAll(ctx)
	if errors.Is(err, ErrSuperseded) {
		return nil
	}
	if err != nil {
		b.notifyErr("Erro ao carregar demandas", err)
		return err
	}
	return nil
}

// MoveCard writes the new category locally right away and persists it in
// the background. If the write fails the previous category is restored,
// unless something else changed the card in the meantime. Moves of the same
// card reach the store in call order.
func (b *Board) MoveCard(ctx context.Context, id string, target domain.Category) (*Pending, error) {
	if !target.Valid() {
		return nil, &ValidationError{Problems: []domain.Problem{{Field: "category", Reason: fmt.Sprintf("unknown category %q", target)}}}
	}
	prev, changed, ok := b.repo.beginMove(id, target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDemand, id)
	}
	if !changed {
		return settled(nil), nil
	}

	p := newPending()
	b.mu.Lock()
	before := b.inflight[id]
	b.inflight[id] = p.done
	b.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		if before != nil {
			<-before
		}
		err := b.repo.Update(bg, id, domain.Patch{Category: &target})
		if b.repo.settleMove(id, target, prev, err != nil) {
			b.log.Warn("move rolled back", "id", id, "from", prev, "to", target, "error", err)
		}
		if err != nil {
			b.notifyErr("Erro ao mover demanda", err)
		}
		b.mu.Lock()
		if b.inflight[id] == p.done {
			delete(b.inflight, id)
		}
		b.mu.Unlock()
		p.finish(err)
	}()
	return p, nil
}

// Reorder changes the order of cards within one column. It is local only:
// the store keeps no order and the next reload brings back the store's.
func (b *Board) Reorder(cat domain.Category, ids []string) error {
	if !cat.Valid() {
		return &ValidationError{Problems: []domain.Problem{{Field: "category", Reason: fmt.Sprintf("unknown category %q", cat)}}}
	}
	return b.repo.reorder(cat, ids)
}

func (b *Board) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *Board) EnterDeleteMode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = ModeDeleteSelecting
	b.selected = map[string]bool{}
}

func (b *Board) ExitDeleteMode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = ModeNormal
	b.selected = map[string]bool{}
}

// ToggleSelect flips id in the deletion selection and reports whether it is
// now selected.
func (b *Board) ToggleSelect(id string) (bool, error) {
	if b.Mode() != ModeDeleteSelecting {
		return false, ErrNotSelecting
	}
	if _, ok := b.repo.Get(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDemand, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode != ModeDeleteSelecting {
		return false, ErrNotSelecting
	}
	if b.selected[id] {
		delete(b.selected, id)
		return false, nil
	}
	b.selected[id] = true
	return true, nil
}

func (b *Board) IsSelected(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected[id]
}

func (b *Board) selectedIDs() []string {
	ids := make([]string, 0, len(b.selected))
	for id := range b.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConfirmDelete deletes the selection. On failure the mode and selection
// are kept so the user can retry.
func (b *Board) ConfirmDelete(ctx context.Context) (int, error) {
	b.mu.Lock()
	if b.mode != ModeDeleteSelecting {
		b.mu.Unlock()
		return 0, ErrNotSelecting
	}
	ids := b.selectedIDs()
	b.mu.Unlock()

	deleted, err := b.repo.BulkDelete(ctx, ids)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			b.notifyErr("Selecione pelo menos uma demanda", err)
		} else {
			b.notifyErr("Erro ao excluir demandas", err)
		}
		return 0, err
	}
	b.repo.remove(ids)
	if deleted != len(ids) {
		b.log.Warn("store deleted a different number of demands", "requested", len(ids), "deleted", deleted)
	}

	b.mu.Lock()
	b.mode = ModeNormal
	b.selected = map[string]bool{}
	b.mu.Unlock()

	b.notifyOK(fmt.Sprintf("%d demanda(s) excluída(s) com sucesso!", deleted))
	_ = b.Reload(ctx)
	return deleted, nil
}

func (b *Board) OpenCreate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form = Form{Open: true, Draft: domain.NewDraft()}
}

func (b *Board) OpenEdit(id string) error {
	d, ok := b.repo.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDemand, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form = Form{Open: true, EditingID: id, Draft: domain.DraftFrom(d)}
	return nil
}

func (b *Board) CloseForm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form = Form{}
}

// SaveForm validates the draft and creates or fully updates the demand.
// The dialog stays open on any error.
func (b *Board) SaveForm(ctx context.Context, draft domain.Draft) (domain.Demand, error) {
	b.mu.Lock()
	if !b.form.Open {
		b.mu.Unlock()
		return domain.Demand{}, ErrFormClosed
	}
	b.form.Draft = draft
	editingID := b.form.EditingID
	b.mu.Unlock()

	draft = cleanDraft(draft)
	if problems := b.repo.Rules().ValidateDraft(draft); len(problems) > 0 {
		err := &ValidationError{Problems: problems}
		b.notifyErr("Preencha todos os campos obrigatórios", err)
		return domain.Demand{}, err
	}

	var saved domain.Demand
	if editingID == "" {
		created, err := b.repo.Create(ctx, draft)
		if err != nil {
			b.notifyErr("Erro ao criar demanda", err)
			return domain.Demand{}, err
		}
		saved = created
		b.notifyOK("Demanda criada com sucesso!")
	} else {
		patch := domain.FullPatch(draft)
		if err := b.repo.Update(ctx, editingID, patch); err != nil {
			b.notifyErr("Erro ao atualizar demanda", err)
			return domain.Demand{}, err
		}
		updated, ok := b.repo.apply(editingID, patch)
		if !ok {
			updated = patch.Apply(domain.Demand{ID: editingID})
		}
		saved = updated
		b.notifyOK("Demanda atualizada com sucesso!")
	}

	b.mu.Lock()
	b.form = Form{}
	b.mu.Unlock()
	_ = b.Reload(ctx)
	return saved, nil
}

func (b *Board) SetFilter(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
}

func (b *Board) ClearFilters() {
	b.SetFilter(Filter{Priority: All, Subgroup: All, Responsible: All})
}

func (b *Board) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// Filtered derives the filtered view from the current collection.
func (b *Board) Filtered() []domain.Demand {
	return Apply(b.repo.Snapshot(), b.Filter())
}

// Column returns the filtered demands of one category in collection order.
func (b *Board) Column(cat domain.Category) []domain.Demand {
	return column(b.Filtered(), cat)
}

// Columns partitions the filtered view by category.
func (b *Board) Columns() map[domain.Category][]domain.Demand {
	view := b.Filtered()
	out := make(map[domain.Category][]domain.Demand, len(domain.Categories))
	for _, cat := range domain.Categories {
		out[cat] = column(view, cat)
	}
	return out
}

func column(view []domain.Demand, cat domain.Category) []domain.Demand {
	out := []domain.Demand{}
	for _, d := range view {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	form := b.form
	form.Draft.Subgroups = append([]string(nil), form.Draft.Subgroups...)
	form.Draft.Responsibles = append([]string(nil), form.Draft.Responsibles...)
	return State{
		Mode:     b.mode,
		Selected: b.selectedIDs(),
		Form:     form,
		Filter:   b.filter,
	}
}

// Present opens a presentation of one category's filtered view.
func (b *Board) Present(cat domain.Category) (*Sequencer, error) {
	items := b.Column(cat)
	if len(items) == 0 {
		return nil, ErrEmptySequence
	}
	return newSequencer(b.repo, items), nil
}

// PresentDemand opens a presentation pinned to a single demand.
func (b *Board) PresentDemand(id string) (*Sequencer, error) {
	d, ok := b.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDemand, id)
	}
	return newSequencer(b.repo, []domain.Demand{d}), nil
}
