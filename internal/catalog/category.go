package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category name is not one of All.
var ErrUnknownCategory = errors.New("unknown category")

// Category identifies one food catalog. The set is closed; see All.
type Category string

const (
	Breakfast      Category = "breakfast"
	Mains          Category = "mains"
	Sides          Category = "sides"
	Accompaniments Category = "accompaniments"
)

// All lists every category in display order.
var All = []Category{Breakfast, Mains, Sides, Accompaniments}

type categoryInfo struct {
	label      string
	wrapperKey string // top-level key in the bundled document
	storageKey string // override snapshot key
}

var categories = map[Category]categoryInfo{
	Breakfast:      {label: "Breakfast", wrapperKey: "breakfast", storageKey: "breakfast-catalog"},
	Mains:          {label: "Main Course", wrapperKey: "mains", storageKey: "mains-catalog"},
	Sides:          {label: "Side Dishes", wrapperKey: "sideDishes", storageKey: "side-dishes-catalog"},
	Accompaniments: {label: "Accompaniments", wrapperKey: "accompaniments", storageKey: "accompaniments-catalog"},
}

// ParseCategory resolves a category id. The wrapper key and storage key
// spellings ("sideDishes", "side-dishes-catalog") are accepted as aliases.
func ParseCategory(s string) (Category, error) {
	name := strings.TrimSpace(s)
	for _, c := range All {
		info := categories[c]
		if strings.EqualFold(name, string(c)) ||
			strings.EqualFold(name, info.wrapperKey) ||
			strings.EqualFold(name, info.storageKey) ||
			strings.EqualFold(name, strings.TrimSuffix(info.storageKey, "-catalog")) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is one of All.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func (c Category) String() string { return string(c) }

// Label is the human-readable name.
func (c Category) Label() string { return categories[c].label }

// WrapperKey is the key the bundled document nests its items under.
func (c Category) WrapperKey() string { return categories[c].wrapperKey }

// StorageKey is where the category's override snapshot is persisted.
func (c Category) StorageKey() string { return categories[c].storageKey }

// DocumentPath is the same-origin path of the bundled catalog document.
func (c Category) DocumentPath() string {
	return "/data/" + string(c) + "-catalog.json"
}
