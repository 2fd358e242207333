package domain

type Demand struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Priority     Priority `json:"priority" enum:"high,medium,low"`
	Subgroups    []string `json:"subgroups"`
	Responsibles []string `json:"responsibles"`
	Observation  string   `json:"observation,omitempty"`
	DeliveryDate string   `json:"delivery_date,omitempty"`
	Category     Category `json:"category" enum:"last_week,this_week,stalled"`
	CreatedAt    string   `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt    string   `json:"updated_at,omitempty" format:"date-time"`
}

// Clone returns a deep copy so callers never share the list backing arrays.
func (d Demand) Clone() Demand {
	d.Subgroups = append([]string(nil), d.Subgroups...)
	d.Responsibles = append([]string(nil), d.Responsibles...)
	return d
}

// Draft is the editable shape of a demand used by create and edit forms.
type Draft struct {
	Description  string   `json:"description"`
	Priority     Priority `json:"priority"`
	Subgroups    []string `json:"subgroups"`
	Responsibles []string `json:"responsibles"`
	Observation  string   `json:"observation,omitempty"`
	DeliveryDate string   `json:"delivery_date,omitempty"`
	Category     Category `json:"category"`
}

// NewDraft returns the empty create-form defaults.
func NewDraft() Draft {
	return Draft{
		Priority:     PriorityMedium,
		Subgroups:    []string{},
		Responsibles: []string{},
		Category:     CategoryThisWeek,
	}
}

// DraftFrom copies a demand into an edit draft, keeping its category.
func DraftFrom(d Demand) Draft {
	c := d.Clone()
	return Draft{
		Description:  c.Description,
		Priority:     c.Priority,
		Subgroups:    c.Subgroups,
		Responsibles: c.Responsibles,
		Observation:  c.Observation,
		DeliveryDate: c.DeliveryDate,
		Category:     c.Category,
	}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Description  *string
	Priority     *Priority
	Subgroups    []string
	Responsibles []string
	Observation  *string
	DeliveryDate *string
	Category     *Category
}

func (p Patch) Empty() bool {
	return p.Description == nil && p.Priority == nil && p.Subgroups == nil &&
		p.Responsibles == nil && p.Observation == nil && p.DeliveryDate == nil && p.Category == nil
}

// FullPatch replaces every editable field with the draft's values.
func FullPatch(d Draft) Patch {
	desc := d.Description
	prio := d.Priority
	obs := d.Observation
	date := d.DeliveryDate
	cat := d.Category
	return Patch{
		Description:  &desc,
		Priority:     &prio,
		Subgroups:    append([]string{}, d.Subgroups...),
		Responsibles: append([]string{}, d.Responsibles...),
		Observation:  &obs,
		DeliveryDate: &date,
		Category:     &cat,
	}
}

// Apply writes the patch onto d.
func (p Patch) Apply(d Demand) Demand {
	d = d.Clone()
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
	}
	if p.Subgroups != nil {
		d.Subgroups = append([]string(nil), p.Subgroups...)
	}
	if p.Responsibles != nil {
		d.Responsibles = append([]string(nil), p.Responsibles...)
	}
	if p.Observation != nil {
		d.Observation = *p.Observation
	}
	if p.DeliveryDate != nil {
		d.DeliveryDate = *p.DeliveryDate
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	return d
}

type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts" format:"date-time"`
	Type     string `json:"type"`
	EntityID string `json:"entity_id,omitempty"`
	Payload  string `json:"payload_json"`
}
