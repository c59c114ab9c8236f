package catalog

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Merge layers local overrides on top of the source list. Source items are
// kept unmodified and in order; a local item is appended only when its
// identity key is not already present. A local copy of a source item is
// therefore never visible: the bundled catalog wins.
func Merge(source, local []Item) []Item {
	merged := make([]Item, 0, len(source)+len(local))
	seen := make(map[string]struct{}, len(source)+len(local))

	for _, it := range source {
		seen[it.Key()] = struct{}{}
		merged = append(merged, it)
	}
	for _, it := range local {
		if _, dup := seen[it.Key()]; dup {
			continue
		}
		seen[it.Key()] = struct{}{}
		merged = append(merged, it)
	}
	return merged
}

// Reconciler produces the effective item list each view consumes.
type Reconciler struct {
	loader    SourceLoader
	overrides *OverrideStore
}

// NewReconciler creates a Reconciler.
func NewReconciler(loader SourceLoader, overrides *OverrideStore) *Reconciler {
	return &Reconciler{loader: loader, overrides: overrides}
}

// Source returns the bundled items for cat, logging any load warning.
func (r *Reconciler) Source(ctx context.Context, cat Category) []Item {
	items, _ := r.source(ctx, cat)
	return items
}

func (r *Reconciler) source(ctx context.Context, cat Category) ([]Item, error) {
	items, err := r.loader.Load(ctx, cat)
	if err != nil {
		log.Warnf("Catalog source for %s degraded to %d items: %v", cat, len(items), err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, err
}

// MergedItems returns Merge(source, overrides) for cat. It never fails; a
// broken source or override snapshot contributes an empty list.
func (r *Reconciler) MergedItems(ctx context.Context, cat Category) []Item {
	return Merge(r.Source(ctx, cat), r.overrides.Read(ctx, cat))
}

// MergeAll merges every category concurrently. Every category gets an
// entry even when its source fails; the error names the first category
// whose source could not be loaded in full.
func (r *Reconciler) MergeAll(ctx context.Context) (map[Category][]Item, error) {
	var (
		mu     sync.Mutex
		result = make(map[Category][]Item, len(All))
	)

	var g errgroup.Group
	for _, cat := range All {
		g.Go(func() error {
			source, err := r.source(ctx, cat)
			items := Merge(source, r.overrides.Read(ctx, cat))
			mu.Lock()
			result[cat] = items
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("%s catalog: %w", cat, err)
			}
			return nil
		})
	}
	err := g.Wait()

	return result, err
}
