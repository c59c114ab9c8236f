package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedShape means the document parsed but matches none of the
// known layouts.
var ErrUnrecognizedShape = errors.New("unrecognized catalog document shape")

// Normalize flattens a bundled catalog document into an item list.
// Recognized layouts:
//
//	{"<wrapperKey>": {"items": [...]}}
//	[...]
//
// Anything else yields an empty list and ErrUnrecognizedShape. The returned
// slice is never nil.
func Normalize(cat Category, data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Item{}, fmt.Errorf("failed to parse %s catalog: empty document", cat)
	}

	switch trimmed[0] {
	case '[':
		return decodeItems(cat, trimmed)
	case '{':
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return []Item{}, fmt.Errorf("failed to parse %s catalog: %w", cat, err)
		}
		wrapped, ok := doc[cat.WrapperKey()]
		if !ok {
			return []Item{}, fmt.Errorf("%w: %s document has no %q key", ErrUnrecognizedShape, cat, cat.WrapperKey())
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(wrapped, &inner); err != nil || inner == nil {
			return []Item{}, fmt.Errorf("%w: %s.%s is not an object", ErrUnrecognizedShape, cat, cat.WrapperKey())
		}
		rawItems := bytes.TrimSpace(inner["items"])
		if len(rawItems) == 0 || rawItems[0] != '[' {
			return []Item{}, fmt.Errorf("%w: %s.%s.items is not an array", ErrUnrecognizedShape, cat, cat.WrapperKey())
		}
		return decodeItems(cat, rawItems)
	default:
		return []Item{}, fmt.Errorf("%w: %s document is neither an object nor an array", ErrUnrecognizedShape, cat)
	}
}

func decodeItems(cat Category, data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return []Item{}, fmt.Errorf("failed to parse %s catalog items: %w", cat, err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}
