package board

import (
	"bytes"
	"encoding/json"
	"fmt"

	"demandboard/internal/domain"
	"demandboard/internal/logger"
	demandsdk "demandboard/sdk/go"
)

// normalize converts a wire record into the canonical demand shape.
// Multi-value fields may arrive as arrays or comma-joined strings.
func normalize(raw demandsdk.Demand, log *logger.Logger) (domain.Demand, error) {
	if raw.ID == "" {
		return domain.Demand{}, fmt.Errorf("record without id")
	}
	cat, err := domain.ParseCategory(raw.Category)
	if err != nil {
		return domain.Demand{}, fmt.Errorf("demand %s: %w", raw.ID, err)
	}
	prio, err := domain.ParsePriority(raw.Priority)
	if err != nil {
		log.Warn("unknown priority, using medium", "id", raw.ID, "priority", raw.Priority)
		prio = domain.PriorityMedium
	}
	subgroups, err := decodeList(raw.Subgroup)
	if err != nil {
		return domain.Demand{}, fmt.Errorf("demand %s subgroup: %w", raw.ID, err)
	}
	responsibles, err := decodeList(raw.Responsible)
	if err != nil {
		return domain.Demand{}, fmt.Errorf("demand %s responsible: %w", raw.ID, err)
	}
	return domain.Demand{
		ID:           raw.ID,
		Description:  raw.Description,
		Priority:     prio,
		Subgroups:    subgroups,
		Responsibles: responsibles,
		Observation:  raw.Observation,
		DeliveryDate: raw.DeliveryDate,
		Category:     cat,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
	}, nil
}

func decodeList(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []string{}, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return domain.SplitList(s), nil
	case '[':
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return domain.CleanList(items), nil
	}
	return nil, fmt.Errorf("expected string or array, got %s", string(trimmed))
}

func normalizeAll(raws []demandsdk.Demand, log *logger.Logger) ([]domain.Demand, error) {
	out := make([]domain.Demand, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		d, err := normalize(raw, log)
		if err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate demand id %s", d.ID)
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out, nil
}

func toInput(d domain.Draft) demandsdk.DemandInput {
	return demandsdk.DemandInput{
		Description:  d.Description,
		Priority:     string(d.Priority),
		Subgroup:     append([]string{}, d.Subgroups...),
		Responsible:  append([]string{}, d.Responsibles...),
		Observation:  d.Observation,
		DeliveryDate: d.DeliveryDate,
		Category:     string(d.Category),
	}
}

func toWirePatch(p domain.Patch) demandsdk.DemandPatch {
	out := demandsdk.DemandPatch{
		Description:  p.Description,
		Observation:  p.Observation,
		DeliveryDate: p.DeliveryDate,
		Subgroup:     p.Subgroups,
		Responsible:  p.Responsibles,
	}
	if p.Priority != nil {
		s := string(*p.Priority)
		out.Priority = &s
	}
	if p.Category != nil {
		s := string(*p.Category)
		out.Category = &s
	}
	return out
}
