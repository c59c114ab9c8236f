package catalog

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"breakfast", Breakfast},
		{"Mains", Mains},
		{"sides", Sides},
		{"sideDishes", Sides},
		{"side-dishes", Sides},
		{"side-dishes-catalog", Sides},
		{" accompaniments ", Accompaniments},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := ParseCategory("desserts")
		if !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("Expected ErrUnknownCategory, got %v", err)
		}
	})
}

func TestCategoryData(t *testing.T) {
	if Sides.WrapperKey() != "sideDishes" {
		t.Errorf("Expected wrapper key 'sideDishes', got '%s'", Sides.WrapperKey())
	}
	if Sides.StorageKey() != "side-dishes-catalog" {
		t.Errorf("Expected storage key 'side-dishes-catalog', got '%s'", Sides.StorageKey())
	}
	if Breakfast.DocumentPath() != "/data/breakfast-catalog.json" {
		t.Errorf("Expected document path '/data/breakfast-catalog.json', got '%s'", Breakfast.DocumentPath())
	}
	if Category("desserts").Valid() {
		t.Error("Expected 'desserts' to be invalid")
	}
}

func TestItemJSON(t *testing.T) {
	t.Run("KeyFallsBackToName", func(t *testing.T) {
		if (Item{Name: "Poha"}).Key() != "Poha" {
			t.Error("Expected key to fall back to name")
		}
		if (Item{ID: "b2", Name: "Poha"}).Key() != "b2" {
			t.Error("Expected key to prefer id")
		}
	})

	t.Run("NumericIDAndExtras", func(t *testing.T) {
		var it Item
		err := json.Unmarshal([]byte(`{"id": 42, "name": "Dal", "prepTime": "20 mins", "nutrition": {"calories": 180}}`), &it)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if it.ID != "42" {
			t.Errorf("Expected id '42', got '%s'", it.ID)
		}
		if it.Totals().Calories != 180 || it.Totals().Protein != 0 {
			t.Errorf("Expected calories 180 and protein 0, got %+v", it.Totals())
		}
		if string(it.Extra["prepTime"]) != `"20 mins"` {
			t.Errorf("Expected prepTime to be preserved, got %s", it.Extra["prepTime"])
		}

		out, err := json.Marshal(it)
		if err != nil {
			t.Fatalf("Failed to marshal: %v", err)
		}
		if !strings.Contains(string(out), `"prepTime":"20 mins"`) {
			t.Errorf("Expected prepTime in output, got %s", out)
		}
	})

	t.Run("CloneIsDeep", func(t *testing.T) {
		orig := Item{ID: "m1", Nutrition: &Nutrition{Calories: 100}, ApplicableFor: []string{"Lunch"}}
		c := orig.Clone()
		c.Nutrition.Calories = 5
		c.ApplicableFor[0] = "Dinner"
		if orig.Nutrition.Calories != 100 || orig.ApplicableFor[0] != "Lunch" {
			t.Errorf("Expected original to be unchanged, got %+v", orig)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Run("Wrapped", func(t *testing.T) {
		doc := `{"sideDishes": {"items": [{"id": "s1", "name": "Raita"}, {"id": "s2", "name": "Papad"}]}}`
		items, err := Normalize(Sides, []byte(doc))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 2 || items[1].Name != "Papad" {
			t.Errorf("Expected 2 items ending with Papad, got %+v", items)
		}
	})

	t.Run("BareArray", func(t *testing.T) {
		items, err := Normalize(Mains, []byte(`  [{"id": "m1", "name": "Dal"}]`))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 1 || items[0].ID != "m1" {
			t.Errorf("Expected [m1], got %+v", items)
		}
	})

	t.Run("EmptyArray", func(t *testing.T) {
		items, err := Normalize(Mains, []byte(`{"mains": {"items": []}}`))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if items == nil || len(items) != 0 {
			t.Errorf("Expected empty non-nil list, got %#v", items)
		}
	})

	unrecognized := map[string]string{
		"WrongWrapperKey": `{"sides": {"items": []}}`,
		"MissingItems":    `{"breakfast": {"entries": []}}`,
		"ItemsNotArray":   `{"breakfast": {"items": {"id": "b1"}}}`,
		"WrapperIsArray":  `{"breakfast": [{"id": "b1"}]}`,
		"Scalar":          `"breakfast"`,
	}
	for name, doc := range unrecognized {
		t.Run(name, func(t *testing.T) {
			cat := Breakfast
			if name == "WrongWrapperKey" {
				cat = Sides
			}
			items, err := Normalize(cat, []byte(doc))
			if !errors.Is(err, ErrUnrecognizedShape) {
				t.Errorf("Expected ErrUnrecognizedShape, got %v", err)
			}
			if items == nil || len(items) != 0 {
				t.Errorf("Expected empty non-nil list, got %#v", items)
			}
		})
	}

	t.Run("InvalidJSON", func(t *testing.T) {
		items, err := Normalize(Breakfast, []byte(`{"breakfast": `))
		if err == nil {
			t.Fatal("Expected a parse error, got nil")
		}
		if errors.Is(err, ErrUnrecognizedShape) {
			t.Errorf("Expected a parse error rather than a shape error, got %v", err)
		}
		if len(items) != 0 {
			t.Errorf("Expected no items, got %d", len(items))
		}
	})
}

func TestMerge(t *testing.T) {
	source := []Item{{ID: "b1", Name: "Idli"}, {ID: "b3", Name: "Dosa"}}
	local := []Item{
		{ID: "b1", Name: "Idli-Local"},
		{ID: "b2", Name: "Poha"},
		{Name: "Upma"},
		{ID: "b2", Name: "Poha-Again"},
	}

	merged := Merge(source, local)

	t.Run("SourcePrecedence", func(t *testing.T) {
		if !reflect.DeepEqual(merged[:len(source)], source) {
			t.Errorf("Expected source items first and unmodified, got %+v", merged[:len(source)])
		}
		for _, it := range merged {
			if it.Name == "Idli-Local" {
				t.Error("Expected local copy of a source item to be excluded")
			}
		}
	})

	t.Run("LocalOrderAndUniqueness", func(t *testing.T) {
		want := []string{"b1", "b3", "b2", "Upma"}
		if len(merged) != len(want) {
			t.Fatalf("Expected %d items, got %d: %+v", len(want), len(merged), merged)
		}
		for i, key := range want {
			if merged[i].Key() != key {
				t.Errorf("Expected key %s at %d, got %s", key, i, merged[i].Key())
			}
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		if !reflect.DeepEqual(Merge(source, local), merged) {
			t.Error("Expected identical output on a second merge")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := Merge(nil, nil); got == nil || len(got) != 0 {
			t.Errorf("Expected empty non-nil list, got %#v", got)
		}
	})
}
