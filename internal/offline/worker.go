package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// State is a worker's lifecycle position.
type State string

const (
	StateNoCache    State = "no-cache"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActive     State = "active"
	StateRedundant  State = "redundant"
)

var (
	// ErrInstallFailed means precaching did not complete; nothing was stored.
	ErrInstallFailed = errors.New("cache install failed")
	// ErrNoWaitingWorker is returned by SkipWaiting with nothing to promote.
	ErrNoWaitingWorker = errors.New("no waiting worker")
	// ErrUnknownMessage is returned for unrecognized control messages.
	ErrUnknownMessage = errors.New("unknown control message")
)

// DefaultPlaceholderIcon is served for images that are neither cached nor
// reachable.
const DefaultPlaceholderIcon = "/assets/icons/icon-192.png"

// Options configure one worker version.
type Options struct {
	CachePrefix     string
	Version         string
	Manifest        []string
	DiscoverShell   bool
	PlaceholderIcon string
}

// FetchEvent describes one intercepted request.
type FetchEvent struct {
	Strategy Strategy
	Outcome  Outcome
	Path     string
	Latency  time.Duration
}

// Recorder receives fetch events.
type Recorder interface {
	RecordEvent(ctx context.Context, ev FetchEvent) error
}

// Worker is one version of the cache manager.
type Worker struct {
	opts     Options
	caches   CacheStorage
	network  Network
	clients  *Clients
	recorder Recorder

	mu    sync.RWMutex
	state State
}

// NewWorker creates a worker in the no-cache state.
func NewWorker(opts Options, caches CacheStorage, network Network, clients *Clients) *Worker {
	if opts.PlaceholderIcon == "" {
		opts.PlaceholderIcon = DefaultPlaceholderIcon
	}
	if clients == nil {
		clients = NewClients()
	}
	return &Worker{
		opts:    opts,
		caches:  caches,
		network: network,
		clients: clients,
		state:   StateNoCache,
	}
}

// SetRecorder attaches a fetch event recorder.
func (w *Worker) SetRecorder(r Recorder) {
	w.recorder = r
}

// Version is the worker's semantic version.
func (w *Worker) Version() string { return w.opts.Version }

// StaticBucket is the precache bucket name for this version.
func (w *Worker) StaticBucket() string {
	return fmt.Sprintf("%s-static-v%s", w.opts.CachePrefix, w.opts.Version)
}

// DynamicBucket is the runtime cache bucket name for this version.
func (w *Worker) DynamicBucket() string {
	return fmt.Sprintf("%s-dynamic-v%s", w.opts.CachePrefix, w.opts.Version)
}

// Buckets lists the bucket names this version owns.
func (w *Worker) Buckets() []string {
	return []string{w.StaticBucket(), w.DynamicBucket()}
}

// Entries counts the responses stored in this version's buckets. Buckets
// that do not exist count as empty and are not created.
func (w *Worker) Entries(ctx context.Context) (int, error) {
	names, err := w.caches.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list caches: %w", err)
	}

	n := 0
	for _, name := range names {
		if name != w.StaticBucket() && name != w.DynamicBucket() {
			continue
		}
		bucket, err := w.caches.Open(ctx, name)
		if err != nil {
			return n, err
		}
		keys, err := bucket.Keys(ctx)
		if err != nil {
			return n, err
		}
		n += len(keys)
	}
	return n, nil
}

// State returns the lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

// Install precaches the manifest, plus the assets linked from the shell page
// when discovery is on, into the static bucket. Every fetch must succeed
// with a 2xx before anything is stored.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)
	log.Infof("Installing cache worker %s", w.opts.Version)

	fetched, err := w.fetchAll(ctx, w.opts.Manifest)
	if err == nil && w.opts.DiscoverShell {
		err = w.fetchDiscovered(ctx, fetched)
	}
	if err == nil {
		err = w.storeStatic(ctx, fetched)
	}
	if err != nil {
		w.setState(StateRedundant)
		log.Errorf("Cache worker %s failed to install: %v", w.opts.Version, err)
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	w.setState(StateInstalled)
	log.Infof("Cache worker %s installed, %d resources precached", w.opts.Version, len(fetched))
	return nil
}

func (w *Worker) fetchAll(ctx context.Context, paths []string) (map[string]*Response, error) {
	var mu sync.Mutex
	fetched := make(map[string]*Response, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, p, nil)
			if err != nil {
				return fmt.Errorf("invalid manifest entry %q: %w", p, err)
			}
			resp, err := w.network.Fetch(gctx, req)
			if err != nil {
				return err
			}
			if !resp.OK() {
				return fmt.Errorf("precache of %s returned HTTP %d", p, resp.Status)
			}
			mu.Lock()
			fetched[p] = resp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}

func (w *Worker) fetchDiscovered(ctx context.Context, fetched map[string]*Response) error {
	shell, ok := fetched["/"]
	if !ok {
		return nil
	}
	assets, err := DiscoverShellAssets(shell.Body)
	if err != nil {
		return err
	}

	var extra []string
	for _, a := range assets {
		if _, done := fetched[a]; !done {
			extra = append(extra, a)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	log.Debugf("Discovered %d extra shell assets: %v", len(extra), extra)

	more, err := w.fetchAll(ctx, extra)
	if err != nil {
		return err
	}
	for p, resp := range more {
		fetched[p] = resp
	}
	return nil
}

func (w *Worker) storeStatic(ctx context.Context, fetched map[string]*Response) error {
	bucket, err := w.caches.Open(ctx, w.StaticBucket())
	if err != nil {
		return err
	}
	for p, resp := range fetched {
		if err := bucket.Put(ctx, p, resp); err != nil {
			_, _ = w.caches.Delete(ctx, w.StaticBucket())
			return err
		}
	}
	return nil
}

// Activate deletes every bucket this version does not own, claims the
// pages, and broadcasts SW_UPDATED when anything was deleted. It returns
// the deleted bucket names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	w.setState(StateActivating)

	names, err := w.caches.Keys(ctx)
	if err != nil {
		w.setState(StateInstalled)
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}

	deleted := []string{}
	for _, name := range names {
		if name == w.StaticBucket() || name == w.DynamicBucket() {
			continue
		}
		ok, err := w.caches.Delete(ctx, name)
		if err != nil {
			w.setState(StateInstalled)
			return deleted, fmt.Errorf("failed to delete stale cache %s: %w", name, err)
		}
		if ok {
			log.Infof("Deleted stale cache %s", name)
			deleted = append(deleted, name)
		}
	}

	w.clients.Claim(w.opts.Version)
	w.setState(StateActive)
	log.Infof("Cache worker %s active", w.opts.Version)

	if len(deleted) > 0 {
		n := w.clients.Broadcast(Message{Type: MsgUpdated, Version: w.opts.Version})
		log.Infof("Announced update to %d clients", n)
	}
	return deleted, nil
}

// Handle answers an intercepted same-origin GET. It always returns a
// response; total failure resolves to the offline fallback.
func (w *Worker) Handle(ctx context.Context, req *http.Request) *Response {
	start := time.Now()
	strategy := Classify(req)

	var (
		resp    *Response
		outcome Outcome
	)
	switch strategy {
	case NetworkFirst:
		resp, outcome = w.networkFirst(ctx, req)
	default:
		resp, outcome = w.cacheFirst(ctx, req)
	}
	if resp == nil {
		resp, outcome = w.fallback(ctx, req)
	}

	w.record(ctx, FetchEvent{
		Strategy: strategy,
		Outcome:  outcome,
		Path:     req.URL.Path,
		Latency:  time.Since(start),
	})
	return resp
}

func (w *Worker) networkFirst(ctx context.Context, req *http.Request) (*Response, Outcome) {
	key := cacheKey(req)

	resp, err := w.network.Fetch(ctx, req)
	if err == nil {
		if resp.OK() {
			w.storeDynamic(ctx, key, resp)
		}
		return resp, OutcomeNetwork
	}
	log.Debugf("Network failed for %s, trying cache: %v", key, err)

	if cached, ok := w.match(ctx, key); ok {
		return cached, OutcomeCache
	}
	return nil, ""
}

func (w *Worker) cacheFirst(ctx context.Context, req *http.Request) (*Response, Outcome) {
	key := cacheKey(req)

	if cached, ok := w.match(ctx, key); ok {
		log.Debugf("Cache hit for %s", key)
		return cached, OutcomeCache
	}

	resp, err := w.network.Fetch(ctx, req)
	if err == nil {
		if resp.OK() {
			w.storeDynamic(ctx, key, resp)
		}
		return resp, OutcomeNetwork
	}
	log.Debugf("Network failed for uncached %s: %v", key, err)

	if ph := placeholder(req); ph != nil {
		return ph, OutcomePlaceholder
	}
	return nil, ""
}

func (w *Worker) fallback(ctx context.Context, req *http.Request) (*Response, Outcome) {
	switch {
	case isNavigation(req):
		for _, shell := range []string{"/", "/index.html"} {
			if cached, ok := w.match(ctx, shell); ok {
				return cached, OutcomeFallback
			}
		}
	case isImage(req):
		if cached, ok := w.match(ctx, w.opts.PlaceholderIcon); ok {
			return cached, OutcomeFallback
		}
	}
	log.Warnf("Offline and no cached copy of %s", req.URL.RequestURI())
	return offlineResponse(req.URL.RequestURI()), OutcomeOffline
}

func (w *Worker) match(ctx context.Context, key string) (*Response, bool) {
	resp, ok, err := w.caches.Match(ctx, key)
	if err != nil {
		log.Warnf("Cache lookup for %s failed: %v", key, err)
		return nil, false
	}
	return resp, ok
}

// storeDynamic holds the state lock across the write so a worker cannot be
// made redundant, and its buckets deleted, halfway through.
func (w *Worker) storeDynamic(ctx context.Context, key string, resp *Response) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.state == StateRedundant {
		log.Debugf("Worker %s is redundant, not caching %s", w.opts.Version, key)
		return
	}

	bucket, err := w.caches.Open(ctx, w.DynamicBucket())
	if err == nil {
		err = bucket.Put(ctx, key, resp)
	}
	if err != nil {
		log.Warnf("Failed to cache %s: %v", key, err)
	}
}

func (w *Worker) record(ctx context.Context, ev FetchEvent) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordEvent(ctx, ev); err != nil {
		log.Debugf("Failed to record fetch event for %s: %v", ev.Path, err)
	}
}

func cacheKey(req *http.Request) string {
	return strings.TrimSpace(req.URL.RequestURI())
}
