package offline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registration holds the active worker and at most one waiting successor.
// It fronts the app shell as an http.Handler and sits beneath outgoing
// same-origin fetches as an http.RoundTripper.
type Registration struct {
	origin  *url.URL
	network Network
	clients *Clients

	mu      sync.RWMutex
	active  *Worker
	waiting *Worker
}

// NewRegistration creates an empty registration for origin.
func NewRegistration(origin string, network Network, clients *Clients) (*Registration, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if clients == nil {
		clients = NewClients()
	}
	return &Registration{origin: u, network: network, clients: clients}, nil
}

// Clients returns the page registry.
func (r *Registration) Clients() *Clients {
	return r.clients
}

// Register installs w. With no active worker it is activated at once;
// otherwise it waits for SKIP_WAITING while the current one keeps serving.
// A failed install leaves the registration untouched.
func (r *Registration) Register(ctx context.Context, w *Worker) error {
	if err := w.Install(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return r.promoteLocked(ctx, w)
	}

	if r.waiting != nil {
		r.waiting.setState(StateRedundant)
	}
	r.waiting = w
	log.Infof("Cache worker %s waiting, %s still active", w.Version(), r.active.Version())
	return nil
}

// SkipWaiting activates the waiting worker immediately.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiting == nil {
		return ErrNoWaitingWorker
	}
	w := r.waiting
	r.waiting = nil
	return r.promoteLocked(ctx, w)
}

// Restore activates w over a static bucket left by an earlier run, without
// precaching. It reports false when a worker is already active or the
// bucket is missing or empty.
func (r *Registration) Restore(ctx context.Context, w *Worker) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return false, nil
	}
	names, err := w.caches.Keys(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list caches: %w", err)
	}
	if !slices.Contains(names, w.StaticBucket()) {
		return false, nil
	}
	bucket, err := w.caches.Open(ctx, w.StaticBucket())
	if err != nil {
		return false, err
	}
	keys, err := bucket.Keys(ctx)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}

	w.setState(StateInstalled)
	if err := r.promoteLocked(ctx, w); err != nil {
		return false, err
	}
	log.Infof("Cache worker %s restored with %d precached resources", w.Version(), len(keys))
	return true, nil
}

// promoteLocked retires the current worker before activating w, so the
// old one stops writing into buckets that activation deletes.
func (r *Registration) promoteLocked(ctx context.Context, w *Worker) error {
	prev := r.active
	if prev != nil {
		prev.setState(StateRedundant)
	}
	if _, err := w.Activate(ctx); err != nil {
		w.setState(StateRedundant)
		if prev != nil {
			prev.setState(StateActive)
		}
		return err
	}
	r.active = w
	return nil
}

// Active returns the controlling worker, or nil.
func (r *Registration) Active() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Waiting returns the installed successor, or nil.
func (r *Registration) Waiting() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

// HandleMessage answers a control message from a page.
func (r *Registration) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	switch msg.Type {
	case MsgSkipWaiting:
		if err := r.SkipWaiting(ctx); err != nil {
			return r.reply(msg.Type), err
		}
		return r.reply(msg.Type), nil
	case MsgGetVersion:
		reply := r.reply(msg.Type)
		if w := r.Active(); w != nil {
			reply.Caches = w.Buckets()
			n, err := w.Entries(ctx)
			if err != nil {
				log.Warnf("Failed to count cached entries: %v", err)
			}
			reply.Entries = n
		}
		return reply, nil
	case MsgCheckUpdate:
		return r.reply(msg.Type), nil
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func (r *Registration) reply(t MessageType) Reply {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reply := Reply{Type: t, State: StateNoCache}
	if r.active != nil {
		reply.Version = r.active.Version()
		reply.State = r.active.State()
	}
	if r.waiting != nil {
		reply.UpdateWaiting = true
		reply.WaitingVersion = r.waiting.Version()
	}
	return reply
}

// Intercepts reports whether req goes through the active worker: a
// same-origin GET while a worker is active.
func (r *Registration) Intercepts(req *http.Request) bool {
	if req.Method != http.MethodGet || !r.sameOrigin(req.URL) {
		return false
	}
	return r.Active() != nil
}

func (r *Registration) sameOrigin(u *url.URL) bool {
	if u.Host == "" {
		return true
	}
	return u.Scheme == r.origin.Scheme && u.Host == r.origin.Host
}

// Fetch answers req through the active worker, or straight from the
// network when the request is not intercepted.
func (r *Registration) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	active := r.Active()
	if active == nil {
		return r.network.Fetch(ctx, req)
	}
	if r.Intercepts(req) {
		return active.Handle(ctx, req), nil
	}

	start := time.Now()
	resp, err := r.network.Fetch(ctx, req)
	active.record(ctx, FetchEvent{
		Strategy: Passthrough,
		Outcome:  OutcomeBypass,
		Path:     req.URL.Path,
		Latency:  time.Since(start),
	})
	return resp, err
}

// ServeHTTP serves the app shell.
func (r *Registration) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	resp, err := r.Fetch(req.Context(), req)
	if err != nil {
		log.Warnf("Passthrough request %s %s failed: %v", req.Method, req.URL.Path, err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	resp.Write(w)
	log.Debugf("%s %s -> %d in %s", req.Method, req.URL.Path, resp.Status, time.Since(start))
}

// RoundTrip lets an http.Client fetch through the cache. Cross-origin
// requests use the default transport.
func (r *Registration) RoundTrip(req *http.Request) (*http.Response, error) {
	if !r.sameOrigin(req.URL) {
		return http.DefaultTransport.RoundTrip(req)
	}
	resp, err := r.Fetch(req.Context(), req)
	if err != nil {
		return nil, err
	}
	return resp.HTTP(req), nil
}
