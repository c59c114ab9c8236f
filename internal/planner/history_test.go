package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"whats-cooking/internal/catalog"
	"whats-cooking/internal/storage"
)

func fullDay() DayPlan {
	return DayPlan{
		catalog.Breakfast: {
			{ID: "b1", Name: "Idli", Nutrition: &catalog.Nutrition{Calories: 150.4, Protein: 4.2, Carbs: 30, Fat: 0.5}},
		},
		catalog.Mains: {
			{ID: "m1", Name: "Dal", Nutrition: &catalog.Nutrition{Calories: 200.3, Protein: 9.1, Carbs: 25.04, Fat: 5}},
			{ID: "m2", Name: "Rice"},
		},
	}
}

func TestAggregate(t *testing.T) {
	got := Aggregate(fullDay())
	want := Totals{Calories: 351, Protein: 13.3, Carbs: 55, Fat: 5.5}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if (Aggregate(DayPlan{}) != Totals{}) {
		t.Error("Expected zero totals for an empty day")
	}
}

func TestArchiveExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Correctness", func(t *testing.T) {
		plan := MenuPlan{"2020-01-01": fullDay(), "2025-01-01": fullDay()}

		remaining, delta := ArchiveExpired(plan, History{}, "2025-01-01", now)
		if _, ok := remaining["2020-01-01"]; ok {
			t.Error("Expected past date to leave the plan")
		}
		if _, ok := remaining["2025-01-01"]; !ok {
			t.Error("Expected today to stay in the plan")
		}
		entry, ok := delta["2020-01-01"]
		if !ok {
			t.Fatal("Expected a history entry for 2020-01-01")
		}
		if entry.Nutrition != Aggregate(fullDay()) {
			t.Errorf("Expected nutrition %+v, got %+v", Aggregate(fullDay()), entry.Nutrition)
		}
		if !entry.CreatedAt.Equal(now) {
			t.Errorf("Expected createdAt %v, got %v", now, entry.CreatedAt)
		}
		if len(plan) != 2 {
			t.Error("Expected input plan to be left untouched")
		}
	})

	t.Run("WriteOnce", func(t *testing.T) {
		first := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
		existing := History{"2020-01-01": {Date: "2020-01-01", CreatedAt: first}}

		remaining, delta := ArchiveExpired(MenuPlan{"2020-01-01": fullDay()}, existing, "2025-01-01", now)
		if len(remaining) != 0 {
			t.Error("Expected already-archived date to be dropped from the plan anyway")
		}
		if _, ok := delta["2020-01-01"]; ok {
			t.Error("Expected no new entry for an archived date")
		}
	})
}

func TestPruneHistory(t *testing.T) {
	h := History{
		"2024-09-30": {Date: "2024-09-30"},
		"2024-10-01": {Date: "2024-10-01"},
		"2024-12-25": {Date: "2024-12-25"},
	}

	kept, dropped := PruneHistory(h, "2025-01-01", 3)
	if dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", dropped)
	}
	if _, ok := kept["2024-09-30"]; ok {
		t.Error("Expected 2024-09-30 to be pruned")
	}
	if _, ok := kept["2024-10-01"]; !ok {
		t.Error("Expected the cutoff date itself to be kept")
	}
	if len(h) != 3 {
		t.Error("Expected input history to be left untouched")
	}

	if _, dropped := PruneHistory(h, "not-a-date", 3); dropped != 0 {
		t.Error("Expected an unparsable today to disable pruning")
	}
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadPurgesAndPersists", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		_ = kv.Set(ctx, HistoryKey, `{"2020-01-01":{"date":"2020-01-01"},"2024-12-01":{"date":"2024-12-01"}}`)

		s := NewHistoryStore(ctx, kv, 3)
		h, pruned, err := s.Load(ctx, "2025-01-01")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if pruned != 1 {
			t.Errorf("Expected 1 pruned, got %d", pruned)
		}
		if len(h) != 1 {
			t.Errorf("Expected 1 entry after purge, got %v", h.Dates())
		}

		h2, _, _ := NewHistoryStore(ctx, kv, 3).Load(ctx, "2000-01-01")
		if _, ok := h2["2020-01-01"]; ok {
			t.Error("Expected purge to be persisted")
		}
	})

	t.Run("SaveIsWriteOnce", func(t *testing.T) {
		s := NewHistoryStore(ctx, storage.NewMemoryStore(), 3)
		first := time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC)

		_, _, _ = s.Save(ctx, History{"2024-12-01": {Date: "2024-12-01", CreatedAt: first}}, "2025-01-01")
		inserted, _, _ := s.Save(ctx, History{"2024-12-01": {Date: "2024-12-01", CreatedAt: first.Add(time.Hour)}}, "2025-01-01")

		if len(inserted) != 0 {
			t.Errorf("Expected nothing inserted the second time, got %v", inserted)
		}
		e, _ := s.Get("2024-12-01")
		if !e.CreatedAt.Equal(first) {
			t.Errorf("Expected createdAt %v to be kept, got %v", first, e.CreatedAt)
		}
	})

	t.Run("PersistenceFailure", func(t *testing.T) {
		s := NewHistoryStore(ctx, quotaStore{storage.NewMemoryStore()}, 3)
		_, _, err := s.Save(ctx, History{"2024-12-01": {Date: "2024-12-01"}}, "2025-01-01")
		if !errors.Is(err, ErrMemoryOnly) {
			t.Errorf("Expected ErrMemoryOnly, got %v", err)
		}
		if _, ok := s.Get("2024-12-01"); !ok {
			t.Error("Expected entry to remain in memory")
		}
	})
}

func TestReconcileHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

	kv := storage.NewMemoryStore()
	plans := NewPlanStore(ctx, kv)
	history := NewHistoryStore(ctx, kv, 3)
	archiver := NewArchiver(plans, history)

	_, _ = plans.AddItems(ctx, "2024-12-30", catalog.Mains, fullDay()[catalog.Mains])
	_, _ = plans.AddItems(ctx, "2020-01-01", catalog.Mains, fullDay()[catalog.Mains])
	_, _ = plans.AddItems(ctx, "2099-01-01", catalog.Mains, []catalog.Item{{ID: "m1", Name: "Dal"}})

	report, err := archiver.ReconcileHistory(ctx, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	t.Run("Archived", func(t *testing.T) {
		if len(report.Archived) != 2 {
			t.Errorf("Expected 2 archived dates, got %v", report.Archived)
		}
		if report.Pruned != 1 {
			t.Errorf("Expected the 2020 entry to be pruned, got %d", report.Pruned)
		}
		if e, ok := history.Get("2024-12-30"); !ok || e.Nutrition.Calories != 200 {
			t.Errorf("Expected archived entry with 200 calories, got %+v", e)
		}
	})

	t.Run("FuturePlanUntouched", func(t *testing.T) {
		dates := plans.Dates()
		if len(dates) != 1 || dates[0] != "2099-01-01" {
			t.Errorf("Expected only 2099-01-01 to remain, got %v", dates)
		}
		if len(plans.GetPlan("2099-01-01")[catalog.Mains]) != 1 {
			t.Error("Expected the future mains selection to be intact")
		}
	})

	t.Run("SecondRunIsNoop", func(t *testing.T) {
		again, err := archiver.ReconcileHistory(ctx, now)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(again.Archived) != 0 || len(again.Skipped) != 0 || again.Pruned != 0 {
			t.Errorf("Expected an empty report, got %+v", again)
		}
	})

	t.Run("StaleDateAlreadyArchived", func(t *testing.T) {
		_, _ = plans.AddItems(ctx, "2024-12-30", catalog.Sides, []catalog.Item{{ID: "s1", Name: "Raita"}})
		again, _ := archiver.ReconcileHistory(ctx, now)
		if len(again.Skipped) != 1 || again.Skipped[0] != "2024-12-30" {
			t.Errorf("Expected 2024-12-30 to be skipped, got %+v", again)
		}
		e, _ := history.Get("2024-12-30")
		if _, ok := e.Meals[catalog.Sides]; ok {
			t.Error("Expected the archived entry to stay unchanged")
		}
	})
}

func TestReconcileHistoryReportsLoadPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

	kv := storage.NewMemoryStore()
	_ = kv.Set(ctx, HistoryKey, `{"2020-01-01":{"date":"2020-01-01"},"2024-12-01":{"date":"2024-12-01"}}`)
	archiver := NewArchiver(NewPlanStore(ctx, kv), NewHistoryStore(ctx, kv, 3))

	report, err := archiver.ReconcileHistory(ctx, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Pruned != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", report.Pruned)
	}
	if len(report.Archived) != 0 {
		t.Errorf("Expected nothing archived, got %v", report.Archived)
	}
}
