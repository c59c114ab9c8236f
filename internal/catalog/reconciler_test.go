package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	"whats-cooking/internal/storage"
)

var bundled = fstest.MapFS{
	"data/breakfast-catalog.json":      {Data: []byte(`{"breakfast": {"items": [{"id": "b1", "name": "Idli"}]}}`)},
	"data/mains-catalog.json":          {Data: []byte(`[{"id": "m1", "name": "Dal", "nutrition": {"calories": 200, "protein": 9}}]`)},
	"data/sides-catalog.json":          {Data: []byte(`{"unexpected": true}`)},
	"data/accompaniments-catalog.json": {Data: []byte(`not json`)},
}

func TestFSLoader(t *testing.T) {
	ctx := context.Background()
	loader := NewFSLoader(bundled)

	t.Run("Wrapped", func(t *testing.T) {
		items, err := loader.Load(ctx, Breakfast)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 1 || items[0].Name != "Idli" {
			t.Errorf("Expected [Idli], got %+v", items)
		}
	})

	t.Run("Degraded", func(t *testing.T) {
		for _, cat := range []Category{Sides, Accompaniments} {
			items, err := loader.Load(ctx, cat)
			if err == nil {
				t.Errorf("Expected a warning for %s, got nil", cat)
			}
			if items == nil || len(items) != 0 {
				t.Errorf("Expected empty list for %s, got %#v", cat, items)
			}
		}
	})

	t.Run("MissingDocument", func(t *testing.T) {
		items, err := NewFSLoader(fstest.MapFS{}).Load(ctx, Mains)
		if err == nil || len(items) != 0 {
			t.Errorf("Expected warning and no items, got %v, %d", err, len(items))
		}
	})
}

func TestHTTPLoader(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/mains-catalog.json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"mains": {"items": [{"id": "m1", "name": "Dal"}, {"id": "m2", "name": "Rajma"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, 5*time.Second, 0, nil)
	defer loader.Close()

	t.Run("Success", func(t *testing.T) {
		items, err := loader.Load(ctx, Mains)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 2 {
			t.Errorf("Expected 2 items, got %d", len(items))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		items, err := loader.Load(ctx, Breakfast)
		if err == nil {
			t.Fatal("Expected a warning for a 404, got nil")
		}
		if items == nil || len(items) != 0 {
			t.Errorf("Expected empty list, got %#v", items)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		l := NewHTTPLoader(url, time.Second, 0, nil)
		defer l.Close()
		items, err := l.Load(ctx, Mains)
		if err == nil || len(items) != 0 {
			t.Errorf("Expected warning and no items, got %v, %d", err, len(items))
		}
	})
}

func TestOverrideStore(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingReadsEmpty", func(t *testing.T) {
		s := NewOverrideStore(storage.NewMemoryStore(), nil)
		if items := s.Read(ctx, Breakfast); items == nil || len(items) != 0 {
			t.Errorf("Expected empty list, got %#v", items)
		}
	})

	t.Run("CorruptReadsEmpty", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		_ = kv.Set(ctx, "mains-catalog", "{not json")
		s := NewOverrideStore(kv, nil)
		if items := s.Read(ctx, Mains); len(items) != 0 {
			t.Errorf("Expected empty list for corrupt snapshot, got %+v", items)
		}
	})

	t.Run("WriteReplacesAndNotifies", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		notifier := NewNotifier()
		s := NewOverrideStore(kv, notifier)

		events, cancel := notifier.Subscribe(Sides)
		defer cancel()
		other, cancelOther := notifier.Subscribe(Mains)
		defer cancelOther()

		_ = s.Write(ctx, Sides, []Item{{ID: "s1", Name: "Raita"}, {ID: "s2", Name: "Papad"}})
		if err := s.Write(ctx, Sides, []Item{{ID: "s3", Name: "Salad"}}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		items := s.Read(ctx, Sides)
		if len(items) != 1 || items[0].ID != "s3" {
			t.Errorf("Expected whole-list replacement, got %+v", items)
		}

		raw, _, _ := kv.Get(ctx, "side-dishes-catalog")
		if raw != `{"items":[{"id":"s3","name":"Salad"}]}` {
			t.Errorf("Expected snapshot under side-dishes-catalog, got %s", raw)
		}

		first := <-events
		second := <-events
		if first.Category != Sides || len(first.Items) != 2 || len(second.Items) != 1 {
			t.Errorf("Expected two Sides events, got %+v then %+v", first, second)
		}
		select {
		case ev := <-other:
			t.Errorf("Expected no Mains event, got %+v", ev)
		default:
		}
	})

	t.Run("UpsertAndRemove", func(t *testing.T) {
		s := NewOverrideStore(storage.NewMemoryStore(), nil)

		_, _ = s.Upsert(ctx, Mains, Item{ID: "m9", Name: "Paneer"})
		items, err := s.Upsert(ctx, Mains, Item{ID: "m9", Name: "Paneer Tikka"})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 1 || items[0].Name != "Paneer Tikka" {
			t.Errorf("Expected upsert to replace by key, got %+v", items)
		}

		removed, err := s.Remove(ctx, Mains, "m9")
		if err != nil || !removed {
			t.Fatalf("Expected removal, got removed=%v err=%v", removed, err)
		}
		removed, _ = s.Remove(ctx, Mains, "m9")
		if removed {
			t.Error("Expected second removal to report nothing removed")
		}
	})

	t.Run("ResetDeletesSnapshot", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		notifier := NewNotifier()
		s := NewOverrideStore(kv, notifier)
		_ = s.Write(ctx, Accompaniments, []Item{{Name: "Pickle"}})

		events, cancel := notifier.Subscribe(Accompaniments)
		defer cancel()

		if err := s.Reset(ctx, Accompaniments); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if _, ok, _ := kv.Get(ctx, Accompaniments.StorageKey()); ok {
			t.Error("Expected the snapshot key to be deleted")
		}
		if items := s.Read(ctx, Accompaniments); len(items) != 0 {
			t.Errorf("Expected no overrides after reset, got %+v", items)
		}
		if ev := <-events; ev.Category != Accompaniments || len(ev.Items) != 0 {
			t.Errorf("Expected an empty Accompaniments event, got %+v", ev)
		}
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		s := NewOverrideStore(storage.NewMemoryStore(), nil)
		if err := s.Write(ctx, Category("desserts"), nil); err == nil {
			t.Error("Expected an error for unknown category, got nil")
		}
		if err := s.Reset(ctx, Category("desserts")); err == nil {
			t.Error("Expected an error resetting an unknown category, got nil")
		}
	})
}

func TestNotifierCancel(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe("")
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Error("Expected channel to be closed after cancel")
	}
	n.Publish(ChangeEvent{Category: Mains})
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()

	t.Run("BreakfastScenario", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		overrides := NewOverrideStore(kv, nil)
		_ = overrides.Write(ctx, Breakfast, []Item{{ID: "b1", Name: "Idli-Local"}, {ID: "b2", Name: "Poha"}})

		r := NewReconciler(NewFSLoader(bundled), overrides)
		got := r.MergedItems(ctx, Breakfast)
		want := []Item{{ID: "b1", Name: "Idli"}, {ID: "b2", Name: "Poha"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	})

	t.Run("MergeAllIsolatesFailures", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		overrides := NewOverrideStore(kv, nil)
		_ = overrides.Write(ctx, Accompaniments, []Item{{Name: "Pickle"}})

		r := NewReconciler(NewFSLoader(bundled), overrides)
		all, err := r.MergeAll(ctx)
		if err == nil {
			t.Error("Expected an error naming a degraded category")
		}

		if len(all) != len(All) {
			t.Fatalf("Expected %d categories, got %d", len(All), len(all))
		}
		if len(all[Mains]) != 1 || len(all[Breakfast]) != 1 {
			t.Errorf("Expected healthy categories to load, got %+v", all)
		}
		if len(all[Sides]) != 0 {
			t.Errorf("Expected unrecognized sides document to yield nothing, got %+v", all[Sides])
		}
		if len(all[Accompaniments]) != 1 || all[Accompaniments][0].Name != "Pickle" {
			t.Errorf("Expected local accompaniments despite broken source, got %+v", all[Accompaniments])
		}
	})

	t.Run("MergeAllHealthy", func(t *testing.T) {
		healthy := fstest.MapFS{}
		for _, cat := range All {
			healthy["data/"+string(cat)+"-catalog.json"] = &fstest.MapFile{Data: []byte(`[]`)}
		}
		r := NewReconciler(NewFSLoader(healthy), NewOverrideStore(storage.NewMemoryStore(), nil))
		all, err := r.MergeAll(ctx)
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if len(all) != len(All) {
			t.Errorf("Expected %d categories, got %d", len(All), len(all))
		}
	})
}
