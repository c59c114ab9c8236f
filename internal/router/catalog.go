package router

import (
	"errors"
	"io"
	"net/http"

	"whats-cooking/internal/catalog"

	"github.com/gin-gonic/gin"
)

// GET /api/catalog
func (h *handler) listCatalogs(c *gin.Context) {
	catalogs, err := h.svc.Reconciler.MergeAll(c.Request.Context())
	body := gin.H{"catalogs": catalogs}
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// GET /api/catalog/:category
func (h *handler) getCatalog(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	items := h.svc.Reconciler.MergedItems(c.Request.Context(), cat)
	c.JSON(http.StatusOK, gin.H{"category": cat, "items": items})
}

// GET /api/catalog/events?category= streams override changes so open
// views can re-merge.
func (h *handler) streamCatalogEvents(c *gin.Context) {
	if h.svc.Notifier == nil {
		notFound(c, "change notifications are disabled")
		return
	}
	var cat catalog.Category
	if q := c.Query("category"); q != "" {
		parsed, err := catalog.ParseCategory(q)
		if err != nil {
			notFound(c, err.Error())
			return
		}
		cat = parsed
	}

	events, cancel := h.svc.Notifier.Subscribe(cat)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GET /api/overrides/:category
func (h *handler) getOverrides(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat, "items": h.svc.Overrides.Read(c.Request.Context(), cat)})
}

// PUT /api/overrides/:category
func (h *handler) replaceOverrides(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	var snap catalog.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if snap.Items == nil {
		snap.Items = []catalog.Item{}
	}

	err := h.svc.Overrides.Write(c.Request.Context(), cat, snap.Items)
	respond(c, http.StatusOK, gin.H{"category": cat, "items": snap.Items}, err)
}

// POST /api/overrides/:category
func (h *handler) upsertOverride(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	var item catalog.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if item.Key() == "" {
		badRequest(c, errors.New("item needs an id or a name"))
		return
	}

	items, err := h.svc.Overrides.Upsert(c.Request.Context(), cat, item)
	respond(c, http.StatusOK, gin.H{"category": cat, "items": items}, err)
}

// DELETE /api/overrides/:category/:key
func (h *handler) removeOverride(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	removed, err := h.svc.Overrides.Remove(c.Request.Context(), cat, c.Param("key"))
	if err == nil && !removed {
		notFound(c, "override not found")
		return
	}
	respond(c, http.StatusOK, gin.H{"removed": removed}, err)
}

// DELETE /api/overrides/:category drops every local item of the category.
func (h *handler) resetOverrides(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	if err := h.svc.Overrides.Reset(c.Request.Context(), cat); err != nil {
		respond(c, http.StatusOK, gin.H{}, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat, "items": h.svc.Reconciler.MergedItems(c.Request.Context(), cat)})
}

func categoryParam(c *gin.Context) (catalog.Category, bool) {
	cat, err := catalog.ParseCategory(c.Param("category"))
	if err != nil {
		notFound(c, err.Error())
		return "", false
	}
	return cat, true
}
