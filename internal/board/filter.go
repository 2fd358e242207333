package board

import (
	"strings"

	"demandboard/internal/domain"
)

// All is the filter value that matches everything. An empty value does too.
const All = "all"

// Filter holds the active predicates. Subgroup and Responsible match by
// membership in the demand's lists.
type Filter struct {
	Priority    string `json:"priority"`
	Subgroup    string `json:"subgroup"`
	Responsible string `json:"responsible"`
}

func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == All
}

// Active reports whether any predicate narrows the view.
func (f Filter) Active() bool {
	return !isAll(f.Priority) || !isAll(f.Subgroup) || !isAll(f.Responsible)
}

func (f Filter) Match(d domain.Demand) bool {
	if !isAll(f.Priority) && string(d.Priority) != strings.TrimSpace(f.Priority) {
		return false
	}
	if !isAll(f.Subgroup) && !member(d.Subgroups, strings.TrimSpace(f.Subgroup)) {
		return false
	}
	if !isAll(f.Responsible) && !member(d.Responsibles, strings.TrimSpace(f.Responsible)) {
		return false
	}
	return true
}

// Apply returns the demands matching f in collection order.
func Apply(items []domain.Demand, f Filter) []domain.Demand {
	out := make([]domain.Demand, 0, len(items))
	for _, d := range items {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

func member(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
