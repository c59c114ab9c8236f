package router

import (
	"errors"
	"io"
	"net/http"

	"whats-cooking/internal/offline"

	"github.com/gin-gonic/gin"
)

// POST /sw/message
func (h *handler) postMessage(c *gin.Context) {
	if h.svc.Registration == nil {
		notFound(c, "offline cache is disabled")
		return
	}
	var msg offline.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reply, err := h.svc.Registration.HandleMessage(c.Request.Context(), msg)
	switch {
	case errors.Is(err, offline.ErrUnknownMessage):
		badRequest(c, err)
	case errors.Is(err, offline.ErrNoWaitingWorker):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reply": reply})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, reply)
	}
}

// GET /sw/events streams broadcasts such as SW_UPDATED as server-sent events.
func (h *handler) streamEvents(c *gin.Context) {
	if h.svc.Registration == nil {
		notFound(c, "offline cache is disabled")
		return
	}
	id, messages, cancel := h.svc.Registration.Clients().Connect()
	defer cancel()

	c.SSEvent("connected", gin.H{"clientId": id})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
