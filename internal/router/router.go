package router

import (
	"errors"
	"net/http"
	"time"

	"whats-cooking/internal/catalog"
	"whats-cooking/internal/metrics"
	"whats-cooking/internal/offline"
	"whats-cooking/internal/planner"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Services are the explicitly constructed stores the routes operate on.
type Services struct {
	Reconciler   *catalog.Reconciler
	Overrides    *catalog.OverrideStore
	Notifier     *catalog.Notifier
	Plans        *planner.PlanStore
	History      *planner.HistoryStore
	Archiver     *planner.Archiver
	Registration *offline.Registration
	Metrics      *metrics.Store
	DataPath     string
	AllowOrigins []string
	Now          func() time.Time
}

type handler struct {
	svc Services
}

// NewRouter builds the HTTP surface: the JSON API, the cache control
// channel, and the app shell served through the cache registration.
func NewRouter(svc Services) *gin.Engine {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	h := &handler{svc: svc}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(svc.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: svc.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", h.health)

	api := r.Group("/api")
	{
		api.GET("/catalog", h.listCatalogs)
		api.GET("/catalog/:category", h.getCatalog)
		api.GET("/catalog/events", h.streamCatalogEvents)

		api.GET("/overrides/:category", h.getOverrides)
		api.PUT("/overrides/:category", h.replaceOverrides)
		api.POST("/overrides/:category", h.upsertOverride)
		api.DELETE("/overrides/:category", h.resetOverrides)
		api.DELETE("/overrides/:category/:key", h.removeOverride)

		api.GET("/plans", h.listPlans)
		api.GET("/plans/:date", h.getPlan)
		api.PUT("/plans/:date", h.savePlan)
		api.DELETE("/plans/:date", h.deletePlan)
		api.POST("/plans/:date/:category", h.addItems)
		api.DELETE("/plans/:date/:category/:key", h.removeItem)

		api.GET("/history", h.getHistory)
		api.GET("/history/:date", h.getHistoryEntry)
		api.POST("/history/reconcile", h.reconcileHistory)
		api.GET("/analytics", h.getAnalytics)
		api.GET("/metrics", h.getMetrics)
	}

	sw := r.Group("/sw")
	{
		sw.POST("/message", h.postMessage)
		sw.GET("/events", h.streamEvents)
	}

	if svc.Registration != nil {
		r.NoRoute(gin.WrapH(svc.Registration))
	}
	return r
}

func (h *handler) today() string {
	return planner.Today(h.svc.Now())
}

func (h *handler) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if reg := h.svc.Registration; reg != nil {
		cache := gin.H{"state": offline.StateNoCache, "clients": reg.Clients().Count()}
		if w := reg.Active(); w != nil {
			cache["state"] = w.State()
			cache["version"] = w.Version()
		}
		body["cache"] = cache
	}
	if h.svc.DataPath != "" {
		body["system"] = metrics.GetSysHealth(h.svc.DataPath)
	}
	c.JSON(http.StatusOK, body)
}

// respond writes body, downgrading a persistence failure to a warning.
func respond(c *gin.Context, status int, body gin.H, err error) {
	switch {
	case err == nil:
	case errors.Is(err, planner.ErrMemoryOnly):
		body["warning"] = planner.ErrMemoryOnly.Error()
	default:
		log.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
