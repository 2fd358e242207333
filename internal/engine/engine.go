package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"demandboard/internal/domain"
	"demandboard/internal/events"
	"demandboard/internal/repo"
)

// ErrInvalid marks input the store refuses to persist.
var ErrInvalid = errors.New("invalid demand")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Rules  domain.Rules
	Now    func() time.Time
}

func New(db *sql.DB, rules domain.Rules) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Rules:  rules,
		Now:    time.Now,
	}
}

func (e Engine) now() string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

// InvalidError carries the field problems that made a draft or patch
// unacceptable. It matches ErrInvalid.
type InvalidError struct {
	Problems []domain.Problem
}

func (e InvalidError) Error() string {
	return ErrInvalid.Error() + ": " + domain.JoinProblems(e.Problems)
}

func (e InvalidError) Is(target error) bool { return target == ErrInvalid }

func invalid(problems []domain.Problem) error {
	return InvalidError{Problems: problems}
}

// CreateDemand validates the draft and stores it under a fresh DMD id.
func (e Engine) CreateDemand(ctx context.Context, d domain.Draft) (domain.Demand, error) {
	if d.Priority == "" {
		d.Priority = domain.PriorityMedium
	}
	if d.Category == "" {
		d.Category = domain.CategoryThisWeek
	}
	d.Subgroups = domain.CleanList(d.Subgroups)
	d.Responsibles = domain.CleanList(d.Responsibles)
	d.Description = strings.TrimSpace(d.Description)
	d.DeliveryDate = strings.TrimSpace(d.DeliveryDate)
	if problems := e.Rules.ValidateDraft(d); len(problems) > 0 {
		return domain.Demand{}, invalid(problems)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demand{}, err
	}
	defer tx.Rollback()

	id, seq, err := e.Repo.NextDemandID(ctx, tx)
	if err != nil {
		return domain.Demand{}, err
	}
	now := e.now()
	demand := domain.Demand{
		ID:           id,
		Description:  d.Description,
		Priority:     d.Priority,
		Subgroups:    d.Subgroups,
		Responsibles: d.Responsibles,
		Observation:  d.Observation,
		DeliveryDate: d.DeliveryDate,
		Category:     d.Category,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.Repo.InsertDemand(ctx, tx, demand, seq); err != nil {
		return domain.Demand{}, fmt.Errorf("insert demand: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.DemandCreated, id, events.EventPayload{
		"category": demand.Category,
		"priority": demand.Priority,
	}); err != nil {
		return domain.Demand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demand{}, err
	}
	return demand, nil
}

// UpdateDemand applies a partial patch. An empty patch returns the stored
// record without touching updated_at.
func (e Engine) UpdateDemand(ctx context.Context, id string, p domain.Patch) (domain.Demand, error) {
	if p.Subgroups != nil {
		p.Subgroups = domain.CleanList(p.Subgroups)
	}
	if p.Responsibles != nil {
		p.Responsibles = domain.CleanList(p.Responsibles)
	}
	if problems := e.Rules.ValidatePatch(p); len(problems) > 0 {
		return domain.Demand{}, invalid(problems)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demand{}, err
	}
	defer tx.Rollback()

	current, err := e.Repo.GetDemandTx(ctx, tx, id)
	if err != nil {
		return domain.Demand{}, err
	}
	if p.Empty() {
		return current, nil
	}
	updated := p.Apply(current)
	updated.UpdatedAt = e.now()
	if err := e.Repo.UpdateDemand(ctx, tx, updated); err != nil {
		return domain.Demand{}, err
	}
	if err := e.events().Append(ctx, tx, events.DemandUpdated, id, changedFields(current, updated)); err != nil {
		return domain.Demand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demand{}, err
	}
	return updated, nil
}

// DeleteDemand removes one demand; ErrNotFound if it does not exist.
func (e Engine) DeleteDemand(ctx context.Context, id string) error {
	deleted, err := e.BulkDelete(ctx, []string{id})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// BulkDelete removes whichever of ids exist and reports which ones did.
func (e Engine) BulkDelete(ctx context.Context, ids []string) ([]string, error) {
	ids = domain.CleanList(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids requires at least one entry", ErrInvalid)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	deleted, err := e.Repo.DeleteDemands(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete demands: %w", err)
	}
	for _, id := range deleted {
		if err := e.events().Append(ctx, tx, events.DemandDeleted, id, nil); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return deleted, nil
}

func changedFields(before, after domain.Demand) events.EventPayload {
	out := events.EventPayload{}
	if before.Description != after.Description {
		out["description"] = after.Description
	}
	if before.Priority != after.Priority {
		out["priority"] = after.Priority
	}
	if domain.JoinList(before.Subgroups) != domain.JoinList(after.Subgroups) {
		out["subgroups"] = after.Subgroups
	}
	if domain.JoinList(before.Responsibles) != domain.JoinList(after.Responsibles) {
		out["responsibles"] = after.Responsibles
	}
	if before.Observation != after.Observation {
		out["observation"] = after.Observation
	}
	if before.DeliveryDate != after.DeliveryDate {
		out["delivery_date"] = after.DeliveryDate
	}
	if before.Category != after.Category {
		out["from"] = before.Category
		out["category"] = after.Category
	}
	return out
}
