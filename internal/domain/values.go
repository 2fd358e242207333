package domain

import (
	"fmt"
	"strings"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority accepts canonical names and the legacy Portuguese values
// still present in older records.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "alta":
		return PriorityHigh, nil
	case "medium", "media", "média":
		return PriorityMedium, nil
	case "low", "baixa":
		return PriorityLow, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

type Category string

const (
	CategoryLastWeek Category = "last_week"
	CategoryThisWeek Category = "this_week"
	CategoryStalled  Category = "stalled"
)

// Categories is the fixed board column order.
var Categories = []Category{CategoryLastWeek, CategoryThisWeek, CategoryStalled}

func (c Category) Valid() bool {
	switch c {
	case CategoryLastWeek, CategoryThisWeek, CategoryStalled:
		return true
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

// Catalog holds the fixed lists a demand's multi-value fields are drawn from.
// An empty list disables the membership check for that field.
type Catalog struct {
	Subgroups      []string
	Responsibles   []string
	CategoryTitles map[Category]string
}

func (c Catalog) HasSubgroup(s string) bool {
	return len(c.Subgroups) == 0 || contains(c.Subgroups, s)
}

func (c Catalog) HasResponsible(s string) bool {
	return len(c.Responsibles) == 0 || contains(c.Responsibles, s)
}

// Title returns the display title of a category, falling back to its id.
func (c Catalog) Title(cat Category) string {
	if t := strings.TrimSpace(c.CategoryTitles[cat]); t != "" {
		return t
	}
	return string(cat)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidDeliveryDate checks the DD/MM/YYYY shape only: two digits, slash, two
// digits, slash, four digits. Calendar validity is not checked.
func ValidDeliveryDate(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i, r := range s {
		switch i {
		case 2, 5:
			if r != '/' {
				return false
			}
		default:
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// MaskDeliveryDate formats free input the way the date field does while typing:
// non-digits are dropped, at most eight digits are kept, and slashes are
// inserted after the day and month.
func MaskDeliveryDate(input string) string {
	var digits []rune
	for _, r := range input {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
		if len(digits) == 8 {
			break
		}
	}
	var b strings.Builder
	for i, r := range digits {
		if i == 2 || i == 4 {
			b.WriteByte('/')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CleanList trims entries, drops blanks and repeats, and keeps input order.
func CleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SplitList splits the ", "-joined wire form of a multi-value field. A bare
// comma belongs to the entry.
func SplitList(s string) []string {
	return CleanList(strings.Split(s, ", "))
}

// JoinList renders the comma-space-joined wire form.
func JoinList(in []string) string {
	return strings.Join(in, ", ")
}
