package domain

import (
	"fmt"
	"strings"
)

// Problem describes one invalid field of a draft or patch.
type Problem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	return p.Field + " " + p.Reason
}

// Rules are the checks applied to drafts and patches on both sides of the wire.
type Rules struct {
	Catalog             Catalog
	RequireDeliveryDate bool
}

// ValidateDraft returns every problem found in d; nil means the draft can be saved.
func (r Rules) ValidateDraft(d Draft) []Problem {
	var out []Problem
	if strings.TrimSpace(d.Description) == "" {
		out = append(out, Problem{"description", "is required"})
	}
	if !d.Priority.Valid() {
		out = append(out, Problem{"priority", fmt.Sprintf("must be high, medium or low (got %q)", d.Priority)})
	}
	out = append(out, r.checkSubgroups(CleanList(d.Subgroups))...)
	out = append(out, r.checkResponsibles(CleanList(d.Responsibles))...)
	date := strings.TrimSpace(d.DeliveryDate)
	switch {
	case date == "" && r.RequireDeliveryDate:
		out = append(out, Problem{"delivery_date", "is required"})
	case date != "" && !ValidDeliveryDate(date):
		out = append(out, Problem{"delivery_date", "must be DD/MM/YYYY"})
	}
	if !d.Category.Valid() {
		out = append(out, Problem{"category", fmt.Sprintf("must be last_week, this_week or stalled (got %q)", d.Category)})
	}
	return out
}

// ValidatePatch checks only the fields the patch carries.
func (r Rules) ValidatePatch(p Patch) []Problem {
	var out []Problem
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		out = append(out, Problem{"description", "must not be empty"})
	}
	if p.Priority != nil && !p.Priority.Valid() {
		out = append(out, Problem{"priority", fmt.Sprintf("must be high, medium or low (got %q)", *p.Priority)})
	}
	if p.Subgroups != nil {
		out = append(out, r.checkSubgroups(CleanList(p.Subgroups))...)
	}
	if p.Responsibles != nil {
		out = append(out, r.checkResponsibles(CleanList(p.Responsibles))...)
	}
	if p.DeliveryDate != nil {
		date := strings.TrimSpace(*p.DeliveryDate)
		switch {
		case date == "" && r.RequireDeliveryDate:
			out = append(out, Problem{"delivery_date", "must not be empty"})
		case date != "" && !ValidDeliveryDate(date):
			out = append(out, Problem{"delivery_date", "must be DD/MM/YYYY"})
		}
	}
	if p.Category != nil && !p.Category.Valid() {
		out = append(out, Problem{"category", fmt.Sprintf("must be last_week, this_week or stalled (got %q)", *p.Category)})
	}
	return out
}

func (r Rules) checkSubgroups(list []string) []Problem {
	if len(list) == 0 {
		return []Problem{{"subgroups", "requires at least one entry"}}
	}
	var out []Problem
	for _, sg := range list {
		if !r.Catalog.HasSubgroup(sg) {
			out = append(out, Problem{"subgroups", fmt.Sprintf("unknown sub-group %q", sg)})
		}
	}
	return out
}

func (r Rules) checkResponsibles(list []string) []Problem {
	if len(list) == 0 {
		return []Problem{{"responsibles", "requires at least one entry"}}
	}
	var out []Problem
	for _, p := range list {
		if !r.Catalog.HasResponsible(p) {
			out = append(out, Problem{"responsibles", fmt.Sprintf("unknown responsible %q", p)})
		}
	}
	return out
}

// JoinProblems renders problems as one message.
func JoinProblems(problems []Problem) string {
	parts := make([]string, 0, len(problems))
	for _, p := range problems {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, "; ")
}
