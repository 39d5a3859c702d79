package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/services"
)

type createSessionRequest struct {
	Search     string `json:"search"`
	CategoryID int    `json:"category_id" binding:"gte=0"`
}

type searchRequest struct {
	Text string `json:"text"`
}

type refreshRequest struct {
	Anchor int `json:"anchor"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid session request", err)
			return
		}
	}

	s := h.sessions.Create(req.CategoryID, req.Search)
	c.Header("Location", "/sessions/"+s.ID)
	c.JSON(http.StatusCreated, s.State(-1))
}

// getSession returns the session state. position, when given, is the index
// of the item the client is showing and may trigger loading the next page.
func (h *Handler) getSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	position, err := intQuery(c, "position", -1)
	if err != nil {
		badRequest(c, "position must be an integer", err)
		return
	}
	c.JSON(http.StatusOK, s.State(position))
}

// sessionEvents streams the session state as server-sent events until the
// client goes away.
func (h *Handler) sessionEvents(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	updates := s.Subscribe(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-updates:
			if !open {
				c.SSEvent("closed", gin.H{"id": s.ID})
				c.Writer.Flush()
				return
			}
			c.SSEvent("snapshot", services.SessionResponse(s.ID, snap))
			c.Writer.Flush()
		}
	}
}

func (h *Handler) setSessionSearch(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid search request", err)
		return
	}

	changed := s.Pager().SetSearchQuery(req.Text)
	c.JSON(http.StatusOK, gin.H{
		"changed": changed,
		"session": s.State(-1),
	})
}

func (h *Handler) retrySession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Pager().Retry()
	c.JSON(http.StatusAccepted, s.State(-1))
}

func (h *Handler) refreshSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid refresh request", err)
			return
		}
	}

	from := s.Pager().Refresh(req.Anchor)
	c.JSON(http.StatusAccepted, gin.H{
		"refresh_from": int(from),
		"session":      s.State(-1),
	})
}

func (h *Handler) deleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		notFound(c, "session_not_found", "no browse session "+strconv.Quote(c.Param("id")))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) (*services.BrowseSession, bool) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		notFound(c, "session_not_found", "no browse session "+strconv.Quote(c.Param("id")))
		return nil, false
	}
	return s, true
}
