package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"whats-cooking/internal/catalog"
	"whats-cooking/internal/storage"

	log "github.com/sirupsen/logrus"
)

// PlanKey is where the whole plan map is persisted.
const PlanKey = "menu-plan"

// ErrMemoryOnly is returned when a mutation was applied in memory but could
// not be persisted. Callers surface it as a warning; nothing is rolled back.
var ErrMemoryOnly = errors.New("saved locally in memory only")

// PlanStore owns the menu plan. The in-memory map is authoritative for the
// process; every mutation rewrites the whole persisted map.
type PlanStore struct {
	kv   storage.Store
	mu   sync.Mutex
	plan MenuPlan
}

// NewPlanStore loads the persisted plan. A missing or corrupt value starts
// an empty plan.
func NewPlanStore(ctx context.Context, kv storage.Store) *PlanStore {
	s := &PlanStore{kv: kv, plan: MenuPlan{}}

	raw, ok, err := kv.Get(ctx, PlanKey)
	switch {
	case err != nil:
		log.Warnf("Failed to load menu plan, starting empty: %v", err)
	case ok:
		var plan MenuPlan
		if err := json.Unmarshal([]byte(raw), &plan); err != nil {
			log.Warnf("Corrupt menu plan under %q, starting empty: %v", PlanKey, err)
		} else if plan != nil {
			plan.prune()
			s.plan = plan
		}
	}
	return s
}

// AddItems appends items to plan[date][cat], skipping any whose identity
// key is already there. It returns how many were added.
func (s *PlanStore) AddItems(ctx context.Context, date string, cat catalog.Category, items []catalog.Item) (int, error) {
	if !cat.Valid() {
		return 0, fmt.Errorf("%w: %q", catalog.ErrUnknownCategory, cat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.plan[date]
	if !ok {
		day = DayPlan{}
	}
	existing := day[cat]
	seen := make(map[string]struct{}, len(existing)+len(items))
	for _, it := range existing {
		seen[it.Key()] = struct{}{}
	}

	added := 0
	for _, it := range items {
		if _, dup := seen[it.Key()]; dup {
			continue
		}
		seen[it.Key()] = struct{}{}
		existing = append(existing, it.Clone())
		added++
	}
	if added == 0 {
		return 0, nil
	}

	day[cat] = existing
	s.plan[date] = day
	return added, s.persistLocked(ctx)
}

// RemoveItem removes one item by identity key, pruning the category and the
// date when they become empty. It reports whether an item was removed.
func (s *PlanStore) RemoveItem(ctx context.Context, date string, cat catalog.Category, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.plan[date]
	if !ok {
		return false, nil
	}
	items := day[cat]
	idx := slices.IndexFunc(items, func(it catalog.Item) bool { return it.Key() == key })
	if idx < 0 {
		return false, nil
	}

	day[cat] = slices.Delete(items, idx, idx+1)
	if len(day[cat]) == 0 {
		delete(day, cat)
	}
	if len(day) == 0 {
		delete(s.plan, date)
	}
	return true, s.persistLocked(ctx)
}

// GetPlan returns a copy of the plan for date, empty when absent.
func (s *PlanStore) GetPlan(date string) DayPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.plan[date]
	if !ok {
		return DayPlan{}
	}
	return day.Clone()
}

// SavePlan replaces the plan for date. Empty categories are dropped and an
// empty day deletes the date.
func (s *PlanStore) SavePlan(ctx context.Context, date string, day DayPlan) error {
	for cat := range day {
		if !cat.Valid() {
			return fmt.Errorf("%w: %q", catalog.ErrUnknownCategory, cat)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := day.Clone()
	next.prune()
	if len(next) == 0 {
		if _, ok := s.plan[date]; !ok {
			return nil
		}
		delete(s.plan, date)
	} else {
		s.plan[date] = next
	}
	return s.persistLocked(ctx)
}

// DeletePlan removes a date entirely. It reports whether the date existed.
func (s *PlanStore) DeletePlan(ctx context.Context, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plan[date]; !ok {
		return false, nil
	}
	delete(s.plan, date)
	return true, s.persistLocked(ctx)
}

// RemoveDates deletes several dates in one persisted write.
func (s *PlanStore) RemoveDates(ctx context.Context, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, d := range dates {
		if _, ok := s.plan[d]; ok {
			delete(s.plan, d)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persistLocked(ctx)
}

// Dates lists planned dates in ascending order.
func (s *PlanStore) Dates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates := make([]string, 0, len(s.plan))
	for d := range s.plan {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Upcoming lists plans dated today or later, in date order. It is a pure
// read: expired dates are archived only by Archiver.ReconcileHistory.
func (s *PlanStore) Upcoming(today string) []DatedPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []DatedPlan{}
	for date, day := range s.plan {
		if date >= today {
			out = append(out, DatedPlan{Date: date, Meals: day.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Snapshot returns a deep copy of the whole plan.
func (s *PlanStore) Snapshot() MenuPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan.Clone()
}

func (s *PlanStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.plan)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal menu plan: %v", ErrMemoryOnly, err)
	}
	if err := s.kv.Set(ctx, PlanKey, string(data)); err != nil {
		log.Warnf("Menu plan kept in memory only: %v", err)
		return fmt.Errorf("%w: %v", ErrMemoryOnly, err)
	}
	return nil
}

// Replace swaps the whole plan, pruning empty entries.
func (s *PlanStore) Replace(ctx context.Context, plan MenuPlan) error {
	next := plan.Clone()
	next.prune()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = next
	return s.persistLocked(ctx)
}
