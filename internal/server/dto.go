package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"demandboard/internal/domain"
)

// FlexList is a multi-value field that accepts either a JSON array of strings
// or a single comma-joined string.
type FlexList []string

func (f *FlexList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexList(domain.SplitList(s))
		return nil
	}
	var items []string
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	*f = FlexList(items)
	return nil
}

func (f FlexList) Schema(r huma.Registry) *huma.Schema {
	return flexListSchema()
}

// WireList renders a multi-value field as an array, or as a comma-joined
// string when Joined is set.
type WireList struct {
	Items  []string
	Joined bool
}

func (w WireList) MarshalJSON() ([]byte, error) {
	if w.Joined {
		return json.Marshal(domain.JoinList(w.Items))
	}
	if w.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w.Items)
}

func (w WireList) Schema(r huma.Registry) *huma.Schema {
	return flexListSchema()
}

func flexListSchema() *huma.Schema {
	return &huma.Schema{
		OneOf: []*huma.Schema{
			{Type: huma.TypeString, Description: "comma-separated values"},
			{Type: huma.TypeArray, Items: &huma.Schema{Type: huma.TypeString}},
		},
	}
}

// Request payloads

type CreateDemandRequest struct {
	Description  string   `json:"description,omitempty" doc:"What has to be done"`
	Priority     string   `json:"priority,omitempty" doc:"high, medium or low; alta, media and baixa are accepted"`
	Subgroup     FlexList `json:"subgroup,omitempty"`
	Responsible  FlexList `json:"responsible,omitempty"`
	Observation  string   `json:"observation,omitempty"`
	DeliveryDate string   `json:"delivery_date,omitempty" doc:"DD/MM/YYYY" example:"21/03/2026"`
	Category     string   `json:"category,omitempty" doc:"last_week, this_week or stalled; defaults to this_week"`
}

type UpdateDemandRequest struct {
	Description  *string  `json:"description,omitempty"`
	Priority     *string  `json:"priority,omitempty"`
	Subgroup     FlexList `json:"subgroup,omitempty"`
	Responsible  FlexList `json:"responsible,omitempty"`
	Observation  *string  `json:"observation,omitempty"`
	DeliveryDate *string  `json:"delivery_date,omitempty"`
	Category     *string  `json:"category,omitempty"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// Response payloads

type DemandResponse struct {
	ID           string   `json:"id" example:"DMD-0001"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority" enum:"high,medium,low"`
	Subgroup     WireList `json:"subgroup"`
	Responsible  WireList `json:"responsible"`
	Observation  string   `json:"observation"`
	DeliveryDate string   `json:"delivery_date"`
	Category     string   `json:"category" enum:"last_week,this_week,stalled"`
	CreatedAt    string   `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt    string   `json:"updated_at,omitempty" format:"date-time"`
}

type BulkDeleteResponse struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type BannerResponse struct {
	Message string         `json:"message"`
	Board   string         `json:"board,omitempty"`
	Team    string         `json:"team,omitempty"`
	Counts  map[string]int `json:"counts"`
}

func (c CreateDemandRequest) draft() (domain.Draft, error) {
	d := domain.NewDraft()
	d.Description = c.Description
	d.Subgroups = []string(c.Subgroup)
	d.Responsibles = []string(c.Responsible)
	d.Observation = c.Observation
	d.DeliveryDate = c.DeliveryDate
	if c.Priority != "" {
		p, err := domain.ParsePriority(c.Priority)
		if err != nil {
			return domain.Draft{}, err
		}
		d.Priority = p
	}
	if c.Category != "" {
		cat, err := domain.ParseCategory(c.Category)
		if err != nil {
			return domain.Draft{}, err
		}
		d.Category = cat
	}
	return d, nil
}

func (u UpdateDemandRequest) patch() (domain.Patch, error) {
	p := domain.Patch{
		Description:  u.Description,
		Observation:  u.Observation,
		DeliveryDate: u.DeliveryDate,
	}
	if u.Subgroup != nil {
		p.Subgroups = []string(u.Subgroup)
	}
	if u.Responsible != nil {
		p.Responsibles = []string(u.Responsible)
	}
	if u.Priority != nil {
		prio, err := domain.ParsePriority(*u.Priority)
		if err != nil {
			return domain.Patch{}, err
		}
		p.Priority = &prio
	}
	if u.Category != nil {
		cat, err := domain.ParseCategory(*u.Category)
		if err != nil {
			return domain.Patch{}, err
		}
		p.Category = &cat
	}
	return p, nil
}

func demandResponse(d domain.Demand, joined bool) DemandResponse {
	return DemandResponse{
		ID:           d.ID,
		Description:  d.Description,
		Priority:     string(d.Priority),
		Subgroup:     WireList{Items: d.Subgroups, Joined: joined},
		Responsible:  WireList{Items: d.Responsibles, Joined: joined},
		Observation:  d.Observation,
		DeliveryDate: d.DeliveryDate,
		Category:     string(d.Category),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func mapDemands(items []domain.Demand, joined bool) []DemandResponse {
	out := make([]DemandResponse, 0, len(items))
	for _, d := range items {
		out = append(out, demandResponse(d, joined))
	}
	return out
}
