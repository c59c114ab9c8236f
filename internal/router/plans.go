package router

import (
	"errors"
	"net/http"
	"strconv"

	"whats-cooking/internal/analytics"
	"whats-cooking/internal/catalog"
	"whats-cooking/internal/planner"

	"github.com/gin-gonic/gin"
)

// GET /api/plans lists upcoming dates. It never archives.
func (h *handler) listPlans(c *gin.Context) {
	today := h.today()
	c.JSON(http.StatusOK, gin.H{"today": today, "plans": h.svc.Plans.Upcoming(today)})
}

// GET /api/plans/:date
func (h *handler) getPlan(c *gin.Context) {
	date := c.Param("date")
	if err := planner.ValidateDate(date); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "meals": h.svc.Plans.GetPlan(date)})
}

// PUT /api/plans/:date
func (h *handler) savePlan(c *gin.Context) {
	date := c.Param("date")
	if err := planner.ValidatePlanDate(date, h.today()); err != nil {
		badRequest(c, err)
		return
	}
	var day planner.DayPlan
	if err := c.ShouldBindJSON(&day); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.svc.Plans.SavePlan(c.Request.Context(), date, day)
	if errors.Is(err, catalog.ErrUnknownCategory) {
		badRequest(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"date": date, "meals": h.svc.Plans.GetPlan(date)}, err)
}

// DELETE /api/plans/:date
func (h *handler) deletePlan(c *gin.Context) {
	deleted, err := h.svc.Plans.DeletePlan(c.Request.Context(), c.Param("date"))
	if err == nil && !deleted {
		notFound(c, "no plan for this date")
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": deleted}, err)
}

// POST /api/plans/:date/:category with {"items": [...]}
func (h *handler) addItems(c *gin.Context) {
	date := c.Param("date")
	if err := planner.ValidatePlanDate(date, h.today()); err != nil {
		badRequest(c, err)
		return
	}
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	var req catalog.Snapshot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	added, err := h.svc.Plans.AddItems(c.Request.Context(), date, cat, req.Items)
	respond(c, http.StatusOK, gin.H{"date": date, "added": added, "meals": h.svc.Plans.GetPlan(date)}, err)
}

// DELETE /api/plans/:date/:category/:key
func (h *handler) removeItem(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	date := c.Param("date")
	removed, err := h.svc.Plans.RemoveItem(c.Request.Context(), date, cat, c.Param("key"))
	if err == nil && !removed {
		notFound(c, "item not planned")
		return
	}
	respond(c, http.StatusOK, gin.H{"date": date, "meals": h.svc.Plans.GetPlan(date)}, err)
}

// GET /api/history
func (h *handler) getHistory(c *gin.Context) {
	history, _, err := h.svc.History.Load(c.Request.Context(), h.today())
	respond(c, http.StatusOK, gin.H{"dates": history.Dates(), "entries": history}, err)
}

// GET /api/history/:date
func (h *handler) getHistoryEntry(c *gin.Context) {
	date := c.Param("date")
	if err := planner.ValidateDate(date); err != nil {
		badRequest(c, err)
		return
	}
	entry, ok := h.svc.History.Get(date)
	if !ok {
		notFound(c, "no archived plan for "+date)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// POST /api/history/reconcile moves past plans into history.
func (h *handler) reconcileHistory(c *gin.Context) {
	report, err := h.svc.Archiver.ReconcileHistory(c.Request.Context(), h.svc.Now())
	respond(c, http.StatusOK, gin.H{"report": report}, err)
}

// GET /api/analytics?from=&to=
func (h *handler) getAnalytics(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if err := planner.ValidateDate(d); err != nil {
			badRequest(c, err)
			return
		}
	}

	history, _, err := h.svc.History.Load(c.Request.Context(), h.today())
	respond(c, http.StatusOK, gin.H{"report": analytics.Summarize(history, from, to)}, err)
}

// GET /api/metrics?days=N
func (h *handler) getMetrics(c *gin.Context) {
	if h.svc.Metrics == nil {
		notFound(c, "metrics are disabled")
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		badRequest(c, errors.New("days must be a positive integer"))
		return
	}

	stats, err := h.svc.Metrics.GetDailyStats(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "stats": stats})
}
