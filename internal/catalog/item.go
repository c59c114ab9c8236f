package catalog

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Nutrition holds per-serving values. Missing fields decode as 0.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Item is one catalog entry. Fields the app does not model are kept in
// Extra and written back unchanged, so plan snapshots are full copies.
type Item struct {
	ID            string     `json:"id,omitempty"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Type          string     `json:"type,omitempty"`
	Nutrition     *Nutrition `json:"nutrition,omitempty"`
	Region        string     `json:"region,omitempty"`
	Cuisine       string     `json:"cuisine,omitempty"`
	ApplicableFor []string   `json:"applicableFor,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var itemFields = []string{"id", "name", "description", "type", "nutrition", "region", "cuisine", "applicableFor"}

// Key is the identity key: ID when set, otherwise Name.
func (i Item) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return i.Name
}

// Totals returns the item's nutrition, zero when absent.
func (i Item) Totals() Nutrition {
	if i.Nutrition == nil {
		return Nutrition{}
	}
	return *i.Nutrition
}

// Clone returns a deep copy.
func (i Item) Clone() Item {
	c := i
	if i.Nutrition != nil {
		n := *i.Nutrition
		c.Nutrition = &n
	}
	c.ApplicableFor = slices.Clone(i.ApplicableFor)
	if i.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(i.Extra))
		for k, v := range i.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return c
}

// CloneItems deep-copies a list. The result is never nil.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

type plainItem Item

// UnmarshalJSON accepts numeric ids and keeps unknown fields.
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if id, ok := raw["id"]; ok {
		id = bytes.TrimSpace(id)
		if len(id) > 0 && (id[0] == '-' || (id[0] >= '0' && id[0] <= '9')) {
			quoted, _ := json.Marshal(string(id))
			raw["id"] = quoted
			data, _ = json.Marshal(raw)
		}
	}

	var p plainItem
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	for _, f := range itemFields {
		delete(raw, f)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	*i = Item(p)
	return nil
}

// MarshalJSON writes modelled fields plus any preserved extras.
func (i Item) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainItem(i))
	if err != nil || len(i.Extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range i.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Snapshot is the persisted override blob for one category.
type Snapshot struct {
	Items []Item `json:"items"`
}
