package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"whats-cooking/internal/storage"

	log "github.com/sirupsen/logrus"
)

// OverrideStore persists user-added and edited items per category,
// independent of the bundled documents.
type OverrideStore struct {
	kv       storage.Store
	notifier *Notifier
	mu       sync.Mutex // serializes read-modify-write helpers
}

// NewOverrideStore creates an OverrideStore. notifier may be nil.
func NewOverrideStore(kv storage.Store, notifier *Notifier) *OverrideStore {
	return &OverrideStore{kv: kv, notifier: notifier}
}

// Read returns the stored overrides. A missing or unparsable snapshot reads
// as an empty list.
func (s *OverrideStore) Read(ctx context.Context, cat Category) []Item {
	if !cat.Valid() {
		log.Warnf("Ignoring override read for unknown category %q", cat)
		return []Item{}
	}

	raw, ok, err := s.kv.Get(ctx, cat.StorageKey())
	if err != nil {
		log.Warnf("Failed to read %s overrides, using none: %v", cat, err)
		return []Item{}
	}
	if !ok {
		return []Item{}
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Warnf("Corrupt %s overrides under %q, using none: %v", cat, cat.StorageKey(), err)
		return []Item{}
	}
	if snap.Items == nil {
		return []Item{}
	}
	return snap.Items
}

// Write replaces the whole override list for cat. On success subscribers
// of the category are notified with the new list.
func (s *OverrideStore) Write(ctx context.Context, cat Category, items []Item) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	if items == nil {
		items = []Item{}
	}

	data, err := json.Marshal(Snapshot{Items: items})
	if err != nil {
		return fmt.Errorf("failed to marshal %s overrides: %w", cat, err)
	}
	if err := s.kv.Set(ctx, cat.StorageKey(), string(data)); err != nil {
		return fmt.Errorf("failed to write %s overrides: %w", cat, err)
	}

	if s.notifier != nil {
		s.notifier.Publish(ChangeEvent{Category: cat, Items: CloneItems(items)})
	}
	return nil
}

// Upsert replaces the override with the same identity key, or appends it.
func (s *OverrideStore) Upsert(ctx context.Context, cat Category, item Item) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.Read(ctx, cat)
	replaced := false
	for i := range items {
		if items[i].Key() == item.Key() {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	return items, s.Write(ctx, cat, items)
}

// Remove drops the override with the given identity key. It reports whether
// anything was removed.
func (s *OverrideStore) Remove(ctx context.Context, cat Category, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.Read(ctx, cat)
	kept := items[:0]
	for _, it := range items {
		if it.Key() != key {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, s.Write(ctx, cat, kept)
}

// Reset deletes every override for cat, leaving only the bundled items.
func (s *OverrideStore) Reset(ctx context.Context, cat Category) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, cat.StorageKey()); err != nil {
		return fmt.Errorf("failed to reset %s overrides: %w", cat, err)
	}
	if s.notifier != nil {
		s.notifier.Publish(ChangeEvent{Category: cat, Items: []Item{}})
	}
	return nil
}
