package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"whats-cooking/internal/storage"

	log "github.com/sirupsen/logrus"
)

const (
	// HistoryKey is where the whole history map is persisted.
	HistoryKey = "menu-history"
	// DefaultRetentionMonths is how long archived days are kept.
	DefaultRetentionMonths = 3
)

// HistoryEntry is the archived plan of one past date. Entries are written
// once and never overwritten.
type HistoryEntry struct {
	Date      string    `json:"date"`
	Meals     DayPlan   `json:"meals"`
	CreatedAt time.Time `json:"createdAt"`
	Nutrition Totals    `json:"nutrition"`
}

// History maps YYYY-MM-DD to its archived entry.
type History map[string]HistoryEntry

// Dates lists the archived dates in ascending order.
func (h History) Dates() []string {
	dates := make([]string, 0, len(h))
	for d := range h {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Clone deep-copies the history.
func (h History) Clone() History {
	out := make(History, len(h))
	for d, e := range h {
		e.Meals = e.Meals.Clone()
		out[d] = e
	}
	return out
}

// ArchiveExpired splits plan at today. Every date before today is removed
// from the remaining plan; delta holds a new entry for each of those dates
// that existing does not already contain. Neither input is modified.
func ArchiveExpired(plan MenuPlan, existing History, today string, now time.Time) (MenuPlan, History) {
	remaining := make(MenuPlan, len(plan))
	delta := History{}

	for date, day := range plan {
		if date >= today {
			remaining[date] = day.Clone()
			continue
		}
		if _, archived := existing[date]; archived {
			continue
		}
		meals := day.Clone()
		delta[date] = HistoryEntry{
			Date:      date,
			Meals:     meals,
			CreatedAt: now.UTC(),
			Nutrition: Aggregate(meals),
		}
	}
	return remaining, delta
}

// RetentionCutoff is the oldest date kept by PruneHistory. An unparsable
// today disables pruning.
func RetentionCutoff(today string, months int) (string, bool) {
	t, err := time.Parse(DateLayout, today)
	if err != nil || months <= 0 {
		return "", false
	}
	return t.AddDate(0, -months, 0).Format(DateLayout), true
}

// PruneHistory returns h without entries dated before today minus months,
// and how many were dropped.
func PruneHistory(h History, today string, months int) (History, int) {
	cutoff, ok := RetentionCutoff(today, months)
	if !ok {
		return h, 0
	}

	kept := make(History, len(h))
	dropped := 0
	for d, e := range h {
		if d < cutoff {
			dropped++
			continue
		}
		kept[d] = e
	}
	return kept, dropped
}

// HistoryStore owns the archived history. Like PlanStore, the in-memory map
// stays authoritative when persistence fails.
type HistoryStore struct {
	kv              storage.Store
	retentionMonths int

	mu      sync.Mutex
	history History
}

// NewHistoryStore reads the persisted history. Pruning happens on Load.
func NewHistoryStore(ctx context.Context, kv storage.Store, retentionMonths int) *HistoryStore {
	if retentionMonths <= 0 {
		retentionMonths = DefaultRetentionMonths
	}
	s := &HistoryStore{kv: kv, retentionMonths: retentionMonths, history: History{}}

	raw, ok, err := kv.Get(ctx, HistoryKey)
	switch {
	case err != nil:
		log.Warnf("Failed to load menu history, starting empty: %v", err)
	case ok:
		var h History
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			log.Warnf("Corrupt menu history under %q, starting empty: %v", HistoryKey, err)
		} else if h != nil {
			s.history = h
		}
	}
	return s
}

// Load purges entries past retention, persisting the purge, and returns a
// copy of what is left along with the number of entries purged.
func (s *HistoryStore) Load(ctx context.Context, today string) (History, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	pruned := s.pruneLocked(today)
	if pruned > 0 {
		err = s.persistLocked(ctx)
	}
	return s.history.Clone(), pruned, err
}

// Save inserts delta entries whose date is not archived yet, prunes, and
// persists. It returns the dates actually inserted.
func (s *HistoryStore) Save(ctx context.Context, delta History, today string) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := []string{}
	for d, e := range delta {
		if _, ok := s.history[d]; ok {
			continue
		}
		e.Meals = e.Meals.Clone()
		s.history[d] = e
		inserted = append(inserted, d)
	}
	sort.Strings(inserted)

	pruned := s.pruneLocked(today)
	if len(inserted) == 0 && pruned == 0 {
		return inserted, 0, nil
	}
	return inserted, pruned, s.persistLocked(ctx)
}

// Get returns the entry for date.
func (s *HistoryStore) Get(date string) (HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.history[date]
	if ok {
		e.Meals = e.Meals.Clone()
	}
	return e, ok
}

func (s *HistoryStore) pruneLocked(today string) int {
	kept, dropped := PruneHistory(s.history, today, s.retentionMonths)
	if dropped > 0 {
		log.Infof("Pruned %d history entries older than %d months", dropped, s.retentionMonths)
		s.history = kept
	}
	return dropped
}

func (s *HistoryStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.history)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal menu history: %v", ErrMemoryOnly, err)
	}
	if err := s.kv.Set(ctx, HistoryKey, string(data)); err != nil {
		log.Warnf("Menu history kept in memory only: %v", err)
		return fmt.Errorf("%w: %v", ErrMemoryOnly, err)
	}
	return nil
}
