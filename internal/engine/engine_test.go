package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"demandboard/internal/config"
	"demandboard/internal/db"
	"demandboard/internal/domain"
	"demandboard/internal/engine"
	"demandboard/internal/migrate"
	"demandboard/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, domain.Rules{Catalog: cfg.DomainCatalog(), RequireDeliveryDate: true})
	eng.Now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: ctx}
}

func draft(desc string) domain.Draft {
	d := domain.NewDraft()
	d.Description = desc
	d.Subgroups = []string{"BI Analytics"}
	d.Responsibles = []string{"Ana"}
	d.DeliveryDate = "01/02/2026"
	return d
}

func TestCreateDemandAssignsSequentialIDs(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.CreateDemand(env.Ctx, draft("Fix report"))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := env.Engine.CreateDemand(env.Ctx, draft("Ship dashboard"))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID != "DMD-0001" || second.ID != "DMD-0002" {
		t.Fatalf("unexpected ids %s %s", first.ID, second.ID)
	}
	if first.Category != domain.CategoryThisWeek {
		t.Fatalf("expected default category this_week, got %s", first.Category)
	}
	if first.CreatedAt != "2026-02-01T09:00:00Z" {
		t.Fatalf("unexpected created_at %s", first.CreatedAt)
	}
}

func TestIDsAreNotReusedAfterDelete(t *testing.T) {
	env := newTestEnv(t)
	d1, _ := env.Engine.CreateDemand(env.Ctx, draft("one"))
	if _, err := env.Engine.CreateDemand(env.Ctx, draft("two")); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteDemand(env.Ctx, d1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	d3, err := env.Engine.CreateDemand(env.Ctx, draft("three"))
	if err != nil {
		t.Fatal(err)
	}
	if d3.ID != "DMD-0003" {
		t.Fatalf("expected DMD-0003, got %s", d3.ID)
	}
}

func TestCreateDemandValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]func(*domain.Draft){
		"empty description": func(d *domain.Draft) { d.Description = "  " },
		"no subgroups":      func(d *domain.Draft) { d.Subgroups = nil },
		"unknown subgroup":  func(d *domain.Draft) { d.Subgroups = []string{"Marketing"} },
		"no responsibles":   func(d *domain.Draft) { d.Responsibles = []string{" "} },
		"missing date":      func(d *domain.Draft) { d.DeliveryDate = "" },
		"bad date":          func(d *domain.Draft) { d.DeliveryDate = "1/2/2026" },
		"bad category":      func(d *domain.Draft) { d.Category = "next_week" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := draft("x")
			mutate(&d)
			_, err := env.Engine.CreateDemand(env.Ctx, d)
			if !errors.Is(err, engine.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
	list, err := env.Engine.Repo.ListDemands(env.Ctx, repo.DemandFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("invalid drafts must not be stored, found %d", len(list))
	}
}

func TestUpdateDemandPatchesOnlyGivenFields(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDemand(env.Ctx, draft("Fix report"))
	if err != nil {
		t.Fatal(err)
	}
	stalled := domain.CategoryStalled
	updated, err := env.Engine.UpdateDemand(env.Ctx, d.ID, domain.Patch{Category: &stalled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Category != domain.CategoryStalled || updated.Description != "Fix report" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	obs := "waiting on data team"
	if _, err := env.Engine.UpdateDemand(env.Ctx, d.ID, domain.Patch{Observation: &obs}); err != nil {
		t.Fatalf("observation: %v", err)
	}
	got, err := env.Engine.Repo.GetDemand(env.Ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Observation != obs || got.Category != domain.CategoryStalled {
		t.Fatalf("stored record lost a field: %+v", got)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "demand.updated", d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 update events, got %d", len(events))
	}
}

func TestUpdateMissingDemand(t *testing.T) {
	env := newTestEnv(t)
	cat := domain.CategoryStalled
	_, err := env.Engine.UpdateDemand(env.Ctx, "DMD-9999", domain.Patch{Category: &cat})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBulkDeleteReportsDeletedIDs(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.Engine.CreateDemand(env.Ctx, draft("a"))
	b, _ := env.Engine.CreateDemand(env.Ctx, draft("b"))
	c, _ := env.Engine.CreateDemand(env.Ctx, draft("c"))
	deleted, err := env.Engine.BulkDelete(env.Ctx, []string{a.ID, c.ID, "DMD-4040"})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted, got %v", deleted)
	}
	list, _ := env.Engine.Repo.ListDemands(env.Ctx, repo.DemandFilters{})
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("expected only %s to remain, got %+v", b.ID, list)
	}
	if _, err := env.Engine.BulkDelete(env.Ctx, nil); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty ids, got %v", err)
	}
}

func TestListDemandsFilters(t *testing.T) {
	env := newTestEnv(t)
	d := draft("multi")
	d.Subgroups = []string{"BI Analytics", "Help Desk"}
	d.Priority = domain.PriorityHigh
	if _, err := env.Engine.CreateDemand(env.Ctx, d); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateDemand(env.Ctx, draft("single")); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Repo.ListDemands(env.Ctx, repo.DemandFilters{Subgroup: "Help Desk"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Description != "multi" {
		t.Fatalf("subgroup filter: %+v", got)
	}
	got, _ = env.Engine.Repo.ListDemands(env.Ctx, repo.DemandFilters{Priority: "medium"})
	if len(got) != 1 || got[0].Description != "single" {
		t.Fatalf("priority filter: %+v", got)
	}
	counts, err := env.Engine.Repo.CountDemandsByCategory(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["this_week"] != 2 || counts["stalled"] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
