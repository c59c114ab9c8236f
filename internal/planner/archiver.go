package planner

import (
	"context"
	"errors"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// ArchiveReport describes one ReconcileHistory run.
type ArchiveReport struct {
	Today    string   `json:"today"`
	Archived []string `json:"archived"`
	Skipped  []string `json:"skipped"`
	Pruned   int      `json:"pruned"`
}

// Archiver moves past-dated plans into history.
type Archiver struct {
	plans   *PlanStore
	history *HistoryStore
}

// NewArchiver creates an Archiver over the two stores.
func NewArchiver(plans *PlanStore, history *HistoryStore) *Archiver {
	return &Archiver{plans: plans, history: history}
}

// ReconcileHistory archives every plan dated before now's day, then prunes
// history past retention. It mutates both stores and is only run at
// startup or on explicit request. Dates already archived are dropped from
// the plan without touching their history entry.
//
// History is persisted before the plan so that an interrupted run leaves a
// date in both stores rather than in neither.
func (a *Archiver) ReconcileHistory(ctx context.Context, now time.Time) (ArchiveReport, error) {
	today := Today(now)
	report := ArchiveReport{Today: today, Archived: []string{}, Skipped: []string{}}

	existing, loadPruned, loadErr := a.history.Load(ctx, today)
	plan := a.plans.Snapshot()
	remaining, delta := ArchiveExpired(plan, existing, today, now)

	expired := make([]string, 0, len(plan)-len(remaining))
	for d := range plan {
		if _, ok := remaining[d]; !ok {
			expired = append(expired, d)
		}
	}
	sort.Strings(expired)

	inserted, pruned, saveErr := a.history.Save(ctx, delta, today)
	report.Archived = inserted
	report.Pruned = loadPruned + pruned
	for _, d := range expired {
		if _, ok := delta[d]; !ok {
			report.Skipped = append(report.Skipped, d)
		}
	}

	removeErr := a.plans.RemoveDates(ctx, expired)

	if len(expired) > 0 || report.Pruned > 0 {
		log.Infof("History reconciled for %s: %d archived, %d already archived, %d pruned",
			today, len(report.Archived), len(report.Skipped), report.Pruned)
	}
	return report, errors.Join(loadErr, saveErr, removeErr)
}
