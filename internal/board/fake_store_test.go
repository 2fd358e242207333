package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"demandboard/internal/domain"
	demandsdk "demandboard/sdk/go"
)

var errStoreDown = errors.New("store unavailable")

type updateCall struct {
	ID    string
	Patch demandsdk.DemandPatch
}

// fakeStore is an in-memory Store that records calls. Set started/release to
// hold UpdateDemand until the test lets it through.
type fakeStore struct {
	mu         sync.Mutex
	records    []demandsdk.Demand
	seq        int
	listErr    error
	createErr  error
	updateErrs []error
	deleteErr  error
	// protected ids survive BulkDelete, as when another client holds them.
	protected map[string]bool

	listGate chan struct{}
	started  chan string
	release  chan struct{}

	lists   int
	creates []demandsdk.DemandInput
	updates []updateCall
	deletes [][]string
}

func newFakeStore(records ...demandsdk.Demand) *fakeStore {
	return &fakeStore{records: records, seq: len(records)}
}

func (f *fakeStore) ListDemands(ctx context.Context, _ demandsdk.ListOptions) ([]demandsdk.Demand, error) {
	f.mu.Lock()
	gate := f.listGate
	f.lists++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]demandsdk.Demand(nil), f.records...), nil
}

func (f *fakeStore) CreateDemand(ctx context.Context, in demandsdk.DemandInput) (demandsdk.Demand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		return demandsdk.Demand{}, f.createErr
	}
	f.seq++
	d := demandsdk.Demand{
		ID:           fmt.Sprintf("DMD-%04d", f.seq),
		Description:  in.Description,
		Priority:     in.Priority,
		Subgroup:     rawList(in.Subgroup),
		Responsible:  rawList(in.Responsible),
		Observation:  in.Observation,
		DeliveryDate: in.DeliveryDate,
		Category:     in.Category,
	}
	f.records = append(f.records, d)
	return d, nil
}

func (f *fakeStore) UpdateDemand(ctx context.Context, id string, patch demandsdk.DemandPatch) (demandsdk.Demand, error) {
	f.mu.Lock()
	started, release := f.started, f.release
	f.updates = append(f.updates, updateCall{ID: id, Patch: patch})
	var err error
	if len(f.updateErrs) > 0 {
		err = f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
	}
	f.mu.Unlock()
	if started != nil {
		started <- id
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return demandsdk.Demand{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID != id {
			continue
		}
		r := &f.records[i]
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		if patch.Priority != nil {
			r.Priority = *patch.Priority
		}
		if patch.Subgroup != nil {
			r.Subgroup = rawList(patch.Subgroup)
		}
		if patch.Responsible != nil {
			r.Responsible = rawList(patch.Responsible)
		}
		if patch.Observation != nil {
			r.Observation = *patch.Observation
		}
		if patch.DeliveryDate != nil {
			r.DeliveryDate = *patch.DeliveryDate
		}
		if patch.Category != nil {
			r.Category = *patch.Category
		}
		return *r, nil
	}
	return demandsdk.Demand{}, errors.New("not found")
}

func (f *fakeStore) BulkDelete(ctx context.Context, ids []string) (demandsdk.BulkDeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, append([]string(nil), ids...))
	if f.deleteErr != nil {
		return demandsdk.BulkDeleteResult{}, f.deleteErr
	}
	drop := map[string]bool{}
	for _, id := range ids {
		if !f.protected[id] {
			drop[id] = true
		}
	}
	kept := f.records[:0:0]
	for _, r := range f.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	n := len(f.records) - len(kept)
	f.records = kept
	return demandsdk.BulkDeleteResult{Deleted: n}, nil
}

func (f *fakeStore) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.updates...)
}

func (f *fakeStore) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func rawList(items []string) json.RawMessage {
	b, _ := json.Marshal(items)
	return b
}

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func wireDemand(id string, cat domain.Category, subgroups ...string) demandsdk.Demand {
	if len(subgroups) == 0 {
		subgroups = []string{"BI Analytics"}
	}
	return demandsdk.Demand{
		ID:           id,
		Description:  "demand " + id,
		Priority:     "medium",
		Subgroup:     rawList(subgroups),
		Responsible:  rawList([]string{"Ana"}),
		DeliveryDate: "10/03/2026",
		Category:     string(cat),
	}
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Level == NoticeError {
			n++
		}
	}
	return n
}

func testRules() domain.Rules {
	return domain.Rules{
		Catalog: domain.Catalog{
			Subgroups: []string{"BI Analytics", "Help Desk", "Setor Autônomos"},
		},
		RequireDeliveryDate: true,
	}
}
