package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"whats-cooking/internal/catalog"
	"whats-cooking/internal/config"
	"whats-cooking/internal/database"
	"whats-cooking/internal/metrics"
	"whats-cooking/internal/offline"
	"whats-cooking/internal/planner"
	"whats-cooking/internal/router"
	"whats-cooking/internal/storage"

	log "github.com/sirupsen/logrus"
)

// Options tweak how New wires the application.
type Options struct {
	// SkipOffline leaves out the cache registration. Catalogs are then read
	// straight from the static directory, or from the remote origin when
	// one is configured.
	SkipOffline bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// App holds the application's dependencies.
type App struct {
	cfg *config.Config
	db  *database.DB
	now func() time.Time

	kv      storage.Store
	closeKV func() error
	network offline.Network
	caches  offline.CacheStorage
	loader  catalog.SourceLoader

	Notifier     *catalog.Notifier
	Overrides    *catalog.OverrideStore
	Reconciler   *catalog.Reconciler
	Plans        *planner.PlanStore
	History      *planner.HistoryStore
	Archiver     *planner.Archiver
	Metrics      *metrics.Store
	Registration *offline.Registration
}

// New opens the database and builds every store from cfg. A failed cache
// install is logged; the app then serves from the persisted buckets of the
// same version when there are any, and without an active worker otherwise.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	db, err := database.NewDB(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	kv, closeKV, err := storage.Open(ctx, cfg, db.SQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		now:      opts.Now,
		kv:       kv,
		closeKV:  closeKV,
		Notifier: catalog.NewNotifier(),
		Metrics:  metrics.NewStore(db.SQL),
	}
	a.Overrides = catalog.NewOverrideStore(kv, a.Notifier)
	a.Plans = planner.NewPlanStore(ctx, kv)
	a.History = planner.NewHistoryStore(ctx, kv, cfg.History.RetentionMonths)
	a.Archiver = planner.NewArchiver(a.Plans, a.History)

	if cfg.App.OriginURL != "" {
		a.network = offline.NewHTTPNetwork(cfg.App.OriginURL, a.timeout())
	} else {
		a.network = offline.NewHandlerNetwork(http.FileServer(http.Dir(cfg.App.StaticDir)))
	}

	if opts.SkipOffline {
		a.loader = a.directLoader()
	} else {
		if err := a.register(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.loader = catalog.NewHTTPLoader(cfg.App.Origin, a.timeout(), cfg.Catalog.Retries, a.Registration)
	}
	a.Reconciler = catalog.NewReconciler(a.loader, a.Overrides)

	return a, nil
}

func (a *App) timeout() time.Duration {
	return time.Duration(a.cfg.Catalog.TimeoutSeconds) * time.Second
}

func (a *App) directLoader() catalog.SourceLoader {
	if a.cfg.App.OriginURL != "" {
		return catalog.NewHTTPLoader(a.cfg.App.OriginURL, a.timeout(), a.cfg.Catalog.Retries, nil)
	}
	return catalog.NewFSLoader(os.DirFS(a.cfg.App.StaticDir))
}

func (a *App) register(ctx context.Context) error {
	caches, err := offline.OpenStorage(a.cfg.Offline.CacheDriver, a.db.SQL)
	if err != nil {
		return fmt.Errorf("failed to open cache storage: %w", err)
	}
	a.caches = caches

	reg, err := offline.NewRegistration(a.cfg.App.Origin, a.network, nil)
	if err != nil {
		return err
	}
	a.Registration = reg

	version := a.cfg.Offline.Version
	if err := reg.Register(ctx, a.newWorker(version)); err != nil {
		log.Errorf("Cache worker v%s did not install: %v", version, err)

		restored, err := reg.Restore(ctx, a.newWorker(version))
		switch {
		case err != nil:
			log.Errorf("Failed to restore cache worker v%s: %v", version, err)
		case restored:
			log.Warnf("Serving cache v%s persisted by a previous run", version)
		}
	}
	return nil
}

func (a *App) newWorker(version string) *offline.Worker {
	w := offline.NewWorker(offline.Options{
		CachePrefix:   a.cfg.Offline.CachePrefix,
		Version:       version,
		Manifest:      a.cfg.Offline.Manifest,
		DiscoverShell: a.cfg.Offline.DiscoverShell,
	}, a.caches, a.network, a.Registration.Clients())
	w.SetRecorder(a.Metrics)
	return w
}

// Upgrade installs a cache worker for version. With an active worker the
// new one waits for SKIP_WAITING; without one it activates at once.
// Registering the active version again is a no-op.
func (a *App) Upgrade(ctx context.Context, version string) error {
	if a.Registration == nil {
		return errors.New("offline cache is disabled")
	}
	if active := a.Registration.Active(); active != nil && active.Version() == version {
		return nil
	}
	if err := a.Registration.Register(ctx, a.newWorker(version)); err != nil {
		return fmt.Errorf("cache worker v%s did not install: %w", version, err)
	}
	return nil
}

// Startup reconciles history and then primes the merged catalogs. Neither
// step is fatal: the returned error is for the caller to log.
func (a *App) Startup(ctx context.Context) (planner.ArchiveReport, error) {
	report, err := a.Archiver.ReconcileHistory(ctx, a.now())
	if err != nil {
		log.Warnf("History reconciliation incomplete: %v", err)
	}
	log.Infof("History reconciled for %s: %d archived, %d skipped, %d pruned",
		report.Today, len(report.Archived), len(report.Skipped), report.Pruned)

	catalogs, mergeErr := a.Reconciler.MergeAll(ctx)
	for cat, items := range catalogs {
		log.Infof("Catalog %s: %d items", cat, len(items))
	}
	if mergeErr != nil {
		log.Warnf("Catalogs primed with a degraded source: %v", mergeErr)
	}
	return report, err
}

// Services exposes the stores to the HTTP router.
func (a *App) Services() router.Services {
	return router.Services{
		Reconciler:   a.Reconciler,
		Overrides:    a.Overrides,
		Notifier:     a.Notifier,
		Plans:        a.Plans,
		History:      a.History,
		Archiver:     a.Archiver,
		Registration: a.Registration,
		Metrics:      a.Metrics,
		DataPath:     a.db.Path,
		AllowOrigins: a.cfg.Server.AllowOrigins,
		Now:          a.now,
	}
}

// Handler builds the HTTP router over the app's services.
func (a *App) Handler() http.Handler {
	return router.NewRouter(a.Services())
}

// CleanupMetrics drops fetch metrics older than the configured retention,
// or days when positive.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = a.cfg.Metrics.RetentionDays
	}
	return a.Metrics.Cleanup(ctx, days)
}

// Now is the app clock.
func (a *App) Now() time.Time {
	return a.now()
}

// Today is the current plan date.
func (a *App) Today() string {
	return planner.Today(a.now())
}

// Close releases network clients, storage and the database.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.loader.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := a.network.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.closeKV != nil {
		errs = append(errs, a.closeKV())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
